package schema

// Observer is told the outcome of every dispatch attempt.
type Observer interface {
	Accepted(shape string)
	Rejected(shape string, reason Reason)
}

// Schema binds a Shape to a constructor producing T. The zero Schema is not usable.
type Schema[T any] struct {
	shape    *Shape
	build    func(Object) (T, error)
	observer Observer
}

// NewSchema returns a schema whose build function runs after a successful
// structural decode. An error from build becomes a ReasonInvariant failure.
func NewSchema[T any](shape *Shape, build func(Object) (T, error)) Schema[T] {
	if shape == nil || build == nil {
		panic("schema: NewSchema needs a shape and a build function")
	}
	return Schema[T]{shape: shape, build: build}
}

// Shape returns the underlying shape.
func (s Schema[T]) Shape() *Shape { return s.shape }

// WithObserver returns a copy of s reporting dispatch outcomes to o.
func (s Schema[T]) WithObserver(o Observer) Schema[T] {
	s.observer = o
	return s
}

// Decode decodes payload into T.
func (s Schema[T]) Decode(payload []byte) (T, error) {
	var zero T

	obj, err := Decode(payload, s.shape)
	if err != nil {
		return zero, err
	}

	v, err := s.build(obj)
	if err != nil {
		return zero, &DecodeError{Shape: s.shape.name, Path: "$", Reason: ReasonInvariant, Err: err}
	}
	return v, nil
}

// DecodeAs is the function form of Schema.Decode.
func DecodeAs[T any](payload []byte, s Schema[T]) (T, error) {
	return s.Decode(payload)
}

// On calls handler with the decoded value if payload matches s, and does
// nothing otherwise. It reports whether the handler ran.
func On[T any](payload []byte, s Schema[T], handler func(T)) bool {
	v, err := s.Decode(payload)
	if err != nil {
		if s.observer != nil {
			reason := ReasonShapeMismatch
			if de, ok := err.(*DecodeError); ok {
				reason = de.Reason
			}
			s.observer.Rejected(s.shape.name, reason)
		}
		return false
	}

	if s.observer != nil {
		s.observer.Accepted(s.shape.name)
	}
	handler(v)
	return true
}

// BodySource is anything carrying a JSON body, such as a bus message.
type BodySource interface {
	Body() []byte
}

// OnMessage is On for a message body.
func OnMessage[T any](msg BodySource, s Schema[T], handler func(T)) bool {
	return On(msg.Body(), s, handler)
}
