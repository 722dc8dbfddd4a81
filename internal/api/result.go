package api

// Result is the outcome of a service operation. Services return a
// Result instead of an error so callers always get a value to render,
// and Kind tells them whether a retry could help.
type Result[T any] struct {
	Data    T
	Err     error
	Message string
}

// OK wraps a successful value. message is optional.
func OK[T any](data T, message string) Result[T] {
	return Result[T]{Data: data, Message: message}
}

// Failure wraps a failed operation. data is what the caller should
// render anyway (e.g., an empty list).
func Failure[T any](data T, err error) Result[T] {
	return Result[T]{Data: data, Err: err, Message: Message(err)}
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Kind classifies the outcome.
func (r Result[T]) Kind() Kind { return KindOf(r.Err) }

// Retryable reports whether repeating the operation could succeed.
func (r Result[T]) Retryable() bool { return Retryable(r.Err) }

// ErrorMessage returns the user-facing failure message, or "" on success.
func (r Result[T]) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	if r.Message != "" {
		return r.Message
	}
	return Message(r.Err)
}
