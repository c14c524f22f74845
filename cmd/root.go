package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hookline/internal/transcript"
)

var (
	transcriptPath  string
	validateMode    string
	includeArchived bool
	includeMeta     bool
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "hookline",
	Short: "Inspect and export Claude Code session transcripts",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&transcriptPath, "transcript", "", "Path to a session .jsonl transcript")
	rootCmd.PersistentFlags().StringVar(&validateMode, "validate", "warn", "Undecodable-line handling: strict, warn, or none")
	rootCmd.PersistentFlags().BoolVar(&includeArchived, "include-archived", false, "Include entries from before the last compaction")
	rootCmd.PersistentFlags().BoolVar(&includeMeta, "include-meta", false, "Include meta and transcript-only user entries")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log skipped lines and debug detail to stderr")
}

// DiscoverTranscript finds the transcript path using priority: flag > env >
// newest session file for the current directory
func DiscoverTranscript() (string, error) {
	// 1. CLI flag
	if transcriptPath != "" {
		if _, err := os.Stat(transcriptPath); err != nil {
			return "", fmt.Errorf("transcript not found at --transcript path: %s", transcriptPath)
		}
		return transcriptPath, nil
	}

	// 2. Environment variable
	if envPath := os.Getenv("HOOKLINE_TRANSCRIPT"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	// 3. Newest session file under ~/.claude/projects for the CWD
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	projectDir := filepath.Join(home, ".claude", "projects", mungeProjectPath(cwd))
	if newest := newestSession(projectDir); newest != "" {
		return newest, nil
	}

	return "", fmt.Errorf("no transcript found (use --transcript, set HOOKLINE_TRANSCRIPT, or run inside a project with session logs)")
}

// mungeProjectPath converts an absolute path into the directory name the
// session logs live under: path separators, dots, and underscores all
// become dashes.
func mungeProjectPath(path string) string {
	return strings.NewReplacer("/", "-", ".", "-", "_", "-").Replace(path)
}

// newestSession returns the most recently modified .jsonl file in dir, or
// "" when there is none.
func newestSession(dir string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, erri := os.Stat(matches[i])
		fj, errj := os.Stat(matches[j])
		if erri != nil || errj != nil {
			return erri == nil
		}
		return fi.ModTime().After(fj.ModTime())
	})
	return matches[0]
}

// OpenTranscript discovers, configures, and loads the transcript the
// persistent flags describe
func OpenTranscript() (*transcript.Transcript, error) {
	path, err := DiscoverTranscript()
	if err != nil {
		return nil, err
	}

	t := transcript.New(path)
	switch validateMode {
	case "strict":
		t.Validate = transcript.ValidateStrict
	case "warn":
		t.Validate = transcript.ValidateWarn
	case "none":
		t.Validate = transcript.ValidateNone
	default:
		return nil, fmt.Errorf("invalid --validate mode: %s (want strict, warn, or none)", validateMode)
	}
	t.IncludeArchived = includeArchived
	t.IncludeMeta = includeMeta
	if verbose {
		t.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}
