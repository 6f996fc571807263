package generic

// Result carries a (value, error) pair across a channel boundary as a single
// item.
type Result[T any] struct {
	Value T
	Error error
}

// NewResult wraps a (T, error) return value from another function call as a Result[T].
func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

// Get unpacks the Result[T] back into a (value, error) pair.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Error
}
