package streams

// Map transforms each value emitted by source using fn. A non-nil error from
// fn is returned to the upstream caller as an OnNext failure; the upstream
// decides how it terminates the stream from there.
//
// Example:
//
//	upper := streams.Map(words, func(w string) (string, error) {
//	    return strings.ToUpper(w), nil
//	})
func Map[I, O any](source Publisher[I], fn func(I) (O, error)) Publisher[O] {
	return &mapPublisher[I, O]{source: source, fn: fn}
}

type mapPublisher[I, O any] struct {
	source Publisher[I]
	fn     func(I) (O, error)
}

func (p *mapPublisher[I, O]) Subscribe(s Subscriber[O]) {
	p.source.Subscribe(&mapSubscriber[I, O]{downstream: s, fn: p.fn})
}

type mapSubscriber[I, O any] struct {
	downstream Subscriber[O]
	fn         func(I) (O, error)
}

func (m *mapSubscriber[I, O]) OnSubscribe(s Subscription) {
	m.downstream.OnSubscribe(s)
}

func (m *mapSubscriber[I, O]) OnNext(v I) error {
	o, err := m.fn(v)
	if err != nil {
		return err
	}
	return m.downstream.OnNext(o)
}

func (m *mapSubscriber[I, O]) OnComplete() error {
	return m.downstream.OnComplete()
}

func (m *mapSubscriber[I, O]) OnError(err error) error {
	return m.downstream.OnError(err)
}

// Filter emits only the values for which pred returns true. A suppressed
// value's demand is re-requested upstream so the downstream's requested
// amount is still honored.
func Filter[T any](source Publisher[T], pred func(T) bool) Publisher[T] {
	return &filterPublisher[T]{source: source, pred: pred}
}

type filterPublisher[T any] struct {
	source Publisher[T]
	pred   func(T) bool
}

func (p *filterPublisher[T]) Subscribe(s Subscriber[T]) {
	p.source.Subscribe(&filterSubscriber[T]{downstream: s, pred: p.pred})
}

type filterSubscriber[T any] struct {
	downstream Subscriber[T]
	pred       func(T) bool
	upstream   Subscription
}

func (f *filterSubscriber[T]) OnSubscribe(s Subscription) {
	f.upstream = s
	f.downstream.OnSubscribe(s)
}

func (f *filterSubscriber[T]) OnNext(v T) error {
	if f.pred(v) {
		return f.downstream.OnNext(v)
	}
	return f.upstream.Request(1)
}

func (f *filterSubscriber[T]) OnComplete() error {
	return f.downstream.OnComplete()
}

func (f *filterSubscriber[T]) OnError(err error) error {
	return f.downstream.OnError(err)
}

// WhenOnNext runs fn before each value is forwarded downstream. A non-nil
// error from fn suppresses the delivery and is returned to the upstream
// caller as an OnNext failure.
func WhenOnNext[T any](source Publisher[T], fn func(T) error) Publisher[T] {
	return &whenPublisher[T]{source: source, onNext: fn}
}

// WhenOnComplete runs fn before completion is forwarded downstream. A non-nil
// error from fn suppresses the delivery and is returned to the caller
// signalling completion.
func WhenOnComplete[T any](source Publisher[T], fn func() error) Publisher[T] {
	return &whenPublisher[T]{source: source, onComplete: fn}
}

// WhenOnError runs fn before a failure terminal is forwarded downstream. A
// non-nil error from fn suppresses the delivery and is returned to the caller
// signalling the failure.
func WhenOnError[T any](source Publisher[T], fn func(error) error) Publisher[T] {
	return &whenPublisher[T]{source: source, onError: fn}
}

type whenPublisher[T any] struct {
	source     Publisher[T]
	onNext     func(T) error
	onComplete func() error
	onError    func(error) error
}

func (p *whenPublisher[T]) Subscribe(s Subscriber[T]) {
	p.source.Subscribe(&whenSubscriber[T]{downstream: s, hooks: p})
}

type whenSubscriber[T any] struct {
	downstream Subscriber[T]
	hooks      *whenPublisher[T]
}

func (w *whenSubscriber[T]) OnSubscribe(s Subscription) {
	w.downstream.OnSubscribe(s)
}

func (w *whenSubscriber[T]) OnNext(v T) error {
	if w.hooks.onNext != nil {
		if err := w.hooks.onNext(v); err != nil {
			return err
		}
	}
	return w.downstream.OnNext(v)
}

func (w *whenSubscriber[T]) OnComplete() error {
	if w.hooks.onComplete != nil {
		if err := w.hooks.onComplete(); err != nil {
			return err
		}
	}
	return w.downstream.OnComplete()
}

func (w *whenSubscriber[T]) OnError(err error) error {
	if w.hooks.onError != nil {
		if hookErr := w.hooks.onError(err); hookErr != nil {
			return hookErr
		}
	}
	return w.downstream.OnError(err)
}
