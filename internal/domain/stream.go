package domain

// Stream is a lazy, finite, single-pass sequence of answer fragments.
// Recv returns the next fragment, io.EOF after the upstream end-of-stream
// signal, or the transport error that truncated the stream. Concatenating all
// fragments in yield order equals the full model answer.
type Stream interface {
	Recv() (string, error)
	Close() error
}
