package main

import "hookline/cmd"

func main() {
	cmd.Execute()
}
