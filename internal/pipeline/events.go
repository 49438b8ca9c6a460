package pipeline

import "time"

// Sink receives the event stream for one rewrite request: zero or more
// chunks, then exactly one terminal Done or Error. The cache-replay
// path produces the same event shapes as a live stream, so clients
// cannot tell them apart except by the cached flag.
type Sink interface {
	Chunk(text string, cached bool) error
	Done(text string, cached bool, elapsed time.Duration) error
	Error(code, message string, elapsed time.Duration) error
}

// Result is the terminal payload of a non-streaming operation.
type Result struct {
	Text    string
	Cached  bool
	Elapsed time.Duration
}
