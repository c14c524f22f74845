package hooks

// Response is the decision a handler returns. A nil response (or Allow)
// lets the event proceed with no output.
type Response struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Allow lets the event proceed. It returns nil so allow produces no
// output, which is how the hook protocol encodes approval.
func Allow() *Response { return nil }

// Deny rejects a tool call; the agent sees the reason and can adjust.
func Deny(reason string) *Response {
	return &Response{Decision: "deny", Reason: reason}
}

// Block stops the event outright.
func Block(reason string) *Response {
	return &Response{Decision: "block", Reason: reason}
}

// Blocks reports whether the response halts the handler chain.
func (r *Response) Blocks() bool {
	return r != nil && (r.Decision == "deny" || r.Decision == "block")
}
