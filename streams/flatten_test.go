package streams_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kbukum/streamkit/streams"
	"github.com/kbukum/streamkit/streams/streamtest"
)

func newFlattenHarness() (*streamtest.Publisher[[]string], *streamtest.Subscriber[string]) {
	pub := streamtest.NewPublisher[[]string]()
	sink := streamtest.NewSubscriber[string]()
	streams.FlattenMap(pub, stringBatch).Subscribe(sink)
	return pub, sink
}

func TestFlattenMap_SubscribeDoesNotRequest(t *testing.T) {
	pub, sink := newFlattenHarness()
	if !sink.SubscriptionReceived() {
		t.Fatal("subscriber never received a subscription")
	}
	if got := pub.Subscription().Requests(); got != 0 {
		t.Errorf("upstream requests before demand = %d, want 0", got)
	}
}

func TestFlattenMap_SingleBatchDeferredCompletion(t *testing.T) {
	pub, sink := newFlattenHarness()

	mustRequest(t, sink, 1)
	if got := pub.Subscription().Requests(); got != 1 {
		t.Fatalf("upstream requests = %d, want 1", got)
	}

	mustEmit(t, pub, []string{"one", "two", "three"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"one"}) {
		t.Errorf("got %v, want [one]", got)
	}

	mustComplete(t, pub)
	if sink.Completed() {
		t.Fatal("completion delivered while values remain undelivered")
	}

	mustRequest(t, sink, 1)
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"two"}) {
		t.Errorf("got %v, want [two]", got)
	}
	if sink.Completed() {
		t.Fatal("completion delivered while values remain undelivered")
	}

	mustRequest(t, sink, 2)
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"three"}) {
		t.Errorf("got %v, want [three]", got)
	}
	if !sink.Completed() {
		t.Error("completion not delivered after final value")
	}
	if got := sink.Terminals(); got != 1 {
		t.Errorf("terminals = %d, want 1", got)
	}
	if pub.Subscription().Cancelled() {
		t.Error("upstream cancelled on a naturally terminated stream")
	}
}

func TestFlattenMap_MultipleBatchesSingleRequests(t *testing.T) {
	pub, sink := newFlattenHarness()

	mustRequest(t, sink, 1)
	mustEmit(t, pub, []string{"one", "two", "three"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"one"}) {
		t.Errorf("got %v, want [one]", got)
	}

	mustRequest(t, sink, 1)
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"two"}) {
		t.Errorf("got %v, want [two]", got)
	}
	mustRequest(t, sink, 1)
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"three"}) {
		t.Errorf("got %v, want [three]", got)
	}
	if got := pub.Subscription().Requests(); got != 1 {
		t.Fatalf("upstream requests while batch lasted = %d, want 1", got)
	}

	mustRequest(t, sink, 1)
	if got := pub.Subscription().Requests(); got != 2 {
		t.Fatalf("upstream requests after batch exhausted = %d, want 2", got)
	}

	mustEmit(t, pub, []string{"four"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"four"}) {
		t.Errorf("got %v, want [four]", got)
	}

	mustComplete(t, pub)
	if !sink.Completed() {
		t.Error("completion not delivered")
	}
	if pub.Subscription().Cancelled() {
		t.Error("upstream cancelled on a naturally terminated stream")
	}
}

func TestFlattenMap_EmptyBatchRequestsNext(t *testing.T) {
	pub, sink := newFlattenHarness()

	mustRequest(t, sink, 2)
	if got := pub.Subscription().Requests(); got != 1 {
		t.Fatalf("upstream requests = %d, want 1", got)
	}

	mustEmit(t, pub, nil)
	if got := pub.Subscription().Requests(); got != 2 {
		t.Fatalf("upstream requests after empty batch = %d, want 2", got)
	}

	mustEmit(t, pub, []string{"a"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"a"}) {
		t.Errorf("got %v, want [a]", got)
	}
	if got := pub.Subscription().Requests(); got != 3 {
		t.Fatalf("upstream requests = %d, want 3", got)
	}

	mustEmit(t, pub, []string{"b"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"b"}) {
		t.Errorf("got %v, want [b]", got)
	}
	if got := pub.Subscription().Requests(); got != 3 {
		t.Fatalf("upstream requests with no unmet demand = %d, want 3", got)
	}

	mustRequest(t, sink, 1)
	if got := pub.Subscription().Requests(); got != 4 {
		t.Fatalf("upstream requests = %d, want 4", got)
	}
	mustEmit(t, pub, nil)
	if got := pub.Subscription().Requests(); got != 5 {
		t.Fatalf("upstream requests after empty batch = %d, want 5", got)
	}

	mustComplete(t, pub)
	if !sink.Completed() {
		t.Error("completion not delivered")
	}
}

func TestFlattenMap_ConsumerFailureThenUpstreamComplete(t *testing.T) {
	boom := errors.New("boom")
	pub := streamtest.NewPublisher[[]string]()
	sink := &stubSubscriber[string]{onNext: func(v string) error {
		if v == "two" {
			return boom
		}
		return nil
	}}
	streams.FlattenMap(pub, stringBatch).Subscribe(sink)

	mustRequest(t, subOf(sink), 3)
	if err := pub.Emit([]string{"one", "two", "three"}); !errors.Is(err, boom) {
		t.Fatalf("emit returned %v, want %v", err, boom)
	}
	if !strSliceEqual(sink.items, []string{"one", "two"}) {
		t.Errorf("items = %v, want [one two]", sink.items)
	}
	if sink.errors != 0 {
		t.Fatal("failure delivered before upstream terminated")
	}

	if err := pub.Complete(); err != nil {
		t.Fatalf("complete returned %v", err)
	}
	if sink.errors != 1 || !errors.Is(sink.err, boom) {
		t.Errorf("got %d errors (%v), want the recorded failure", sink.errors, sink.err)
	}
	if sink.completes != 0 {
		t.Error("completion delivered after a recorded failure")
	}
	if pub.Subscription().Cancelled() {
		t.Error("upstream cancelled on the source delivery path")
	}
}

func TestFlattenMap_ConsumerFailureThenUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	upstreamErr := errors.New("upstream failed")
	pub := streamtest.NewPublisher[[]string]()
	sink := &stubSubscriber[string]{onNext: func(string) error { return boom }}
	streams.FlattenMap(pub, stringBatch).Subscribe(sink)

	mustRequest(t, subOf(sink), 1)
	if err := pub.Emit([]string{"one", "two"}); !errors.Is(err, boom) {
		t.Fatalf("emit returned %v, want %v", err, boom)
	}

	if err := pub.Fail(upstreamErr); err != nil {
		t.Fatalf("fail returned %v", err)
	}
	if !errors.Is(sink.err, boom) {
		t.Errorf("delivered error = %v, want the recorded failure %v", sink.err, boom)
	}
	if sink.errors != 1 {
		t.Errorf("errors = %d, want 1", sink.errors)
	}
}

func TestFlattenMap_ConsumerFailureOverwritesBufferedTerminal(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	pub := streamtest.NewPublisher[[]string]()
	sink := &stubSubscriber[string]{onNext: func(v string) error {
		if v == "one" {
			// Upstream fails while the batch is still being delivered.
			if err := pub.Fail(first); err != nil {
				t.Fatalf("re-entrant fail returned %v", err)
			}
			return nil
		}
		return second
	}}
	streams.FlattenMap(pub, stringBatch).Subscribe(sink)

	mustRequest(t, subOf(sink), 3)
	if err := pub.Emit([]string{"one", "two", "three"}); !errors.Is(err, second) {
		t.Fatalf("emit returned %v, want %v", err, second)
	}
	if !strSliceEqual(sink.items, []string{"one", "two"}) {
		t.Errorf("items = %v, want [one two]", sink.items)
	}

	mustComplete(t, pub)
	if !errors.Is(sink.err, second) {
		t.Errorf("delivered error = %v, want the later failure %v", sink.err, second)
	}
	if sink.errors != 1 {
		t.Errorf("errors = %d, want 1", sink.errors)
	}
}

func TestFlattenMap_ConsumerFailureOnRequestPath(t *testing.T) {
	boom := errors.New("boom")
	pub := streamtest.NewPublisher[[]string]()
	batch := streamtest.NewBatch("a", "b")
	sink := &stubSubscriber[string]{onNext: func(string) error { return boom }}
	streams.FlattenMap(pub, func([]string) streams.Batch[string] { return batch }).Subscribe(sink)

	// Buffer the batch with no downstream demand.
	mustEmit(t, pub, []string{"ignored"})
	if len(sink.items) != 0 {
		t.Fatalf("items delivered without demand: %v", sink.items)
	}

	if err := sink.sub.Request(1); err != nil {
		t.Fatalf("request returned %v, want nil on the demand path", err)
	}
	if !errors.Is(sink.err, boom) {
		t.Errorf("delivered error = %v, want %v", sink.err, boom)
	}
	if !pub.Subscription().Cancelled() {
		t.Error("upstream not cancelled on the demand delivery path")
	}
	if got := batch.Releases(); got != 1 {
		t.Errorf("batch releases = %d, want 1", got)
	}

	// Later upstream signals are dropped.
	mustEmit(t, pub, []string{"more"})
	mustComplete(t, pub)
	if sink.errors != 1 || sink.completes != 0 {
		t.Errorf("terminals after failure: %d errors, %d completes, want 1 and 0", sink.errors, sink.completes)
	}
	if !strSliceEqual(sink.items, []string{"a"}) {
		t.Errorf("items = %v, want [a]", sink.items)
	}
}

func TestFlattenMap_CancelReleasesBatchOnce(t *testing.T) {
	pub := streamtest.NewPublisher[[]string]()
	sink := streamtest.NewSubscriber[string]()
	batch := streamtest.NewBatch("one", "two", "three")
	streams.FlattenMap(pub, func([]string) streams.Batch[string] { return batch }).Subscribe(sink)

	mustRequest(t, sink, 1)
	mustEmit(t, pub, []string{"ignored"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"one"}) {
		t.Fatalf("got %v, want [one]", got)
	}

	sink.Cancel()
	if got := batch.Releases(); got != 1 {
		t.Errorf("batch releases = %d, want 1", got)
	}
	if got := pub.Subscription().Cancels(); got != 1 {
		t.Errorf("upstream cancels = %d, want 1", got)
	}

	sink.Cancel()
	if got := batch.Releases(); got != 1 {
		t.Errorf("batch releases after second cancel = %d, want 1", got)
	}
	if got := pub.Subscription().Cancels(); got != 1 {
		t.Errorf("upstream cancels after second cancel = %d, want 1", got)
	}

	mustComplete(t, pub)
	if got := sink.Terminals(); got != 0 {
		t.Errorf("terminals after cancel = %d, want 0", got)
	}
}

func TestFlattenMap_NaturalExhaustionDoesNotRelease(t *testing.T) {
	pub := streamtest.NewPublisher[[]string]()
	sink := streamtest.NewSubscriber[string]()
	batch := streamtest.NewBatch("a", "b")
	streams.FlattenMap(pub, func([]string) streams.Batch[string] { return batch }).Subscribe(sink)

	mustRequest(t, sink, 2)
	mustEmit(t, pub, []string{"ignored"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"a", "b"}) {
		t.Fatalf("got %v, want [a b]", got)
	}
	mustComplete(t, pub)
	if !sink.Completed() {
		t.Fatal("completion not delivered")
	}
	if got := batch.Releases(); got != 0 {
		t.Errorf("batch releases on natural exhaustion = %d, want 0", got)
	}
}

func TestFlattenMap_CancelDropsBufferedTerminal(t *testing.T) {
	pub := streamtest.NewPublisher[[]string]()
	sink := streamtest.NewSubscriber[string]()
	batch := streamtest.NewBatch("a", "b")
	streams.FlattenMap(pub, func([]string) streams.Batch[string] { return batch }).Subscribe(sink)

	mustRequest(t, sink, 1)
	mustEmit(t, pub, []string{"ignored"})
	mustComplete(t, pub)
	if sink.Completed() {
		t.Fatal("completion delivered while values remain undelivered")
	}

	sink.Cancel()
	if got := sink.Terminals(); got != 0 {
		t.Errorf("terminals after cancel = %d, want 0", got)
	}
	if got := batch.Releases(); got != 1 {
		t.Errorf("batch releases = %d, want 1", got)
	}

	mustRequest(t, sink, 1)
	if got := sink.TakeItems(); len(got) != 0 {
		t.Errorf("items after cancel = %v, want none", got)
	}
}

func TestFlattenMap_TerminalIdempotent(t *testing.T) {
	pub, sink := newFlattenHarness()

	mustComplete(t, pub)
	if !sink.Completed() {
		t.Fatal("completion not delivered")
	}
	mustComplete(t, pub)
	if err := pub.Fail(errors.New("late")); err != nil {
		t.Fatalf("late fail returned %v", err)
	}
	if got := sink.Terminals(); got != 1 {
		t.Errorf("terminals = %d, want 1", got)
	}
	if sink.Failed() {
		t.Error("failure delivered after completion")
	}
}

func TestFlattenMap_ValuesAfterTerminalDropped(t *testing.T) {
	pub, sink := newFlattenHarness()

	mustRequest(t, sink, 1)
	mustComplete(t, pub)
	if !sink.Completed() {
		t.Fatal("completion not delivered")
	}

	mustEmit(t, pub, []string{"late"})
	if got := sink.TakeItems(); len(got) != 0 {
		t.Errorf("items after terminal = %v, want none", got)
	}
}

func TestFlattenMap_CompleteCallbackFailurePropagates(t *testing.T) {
	cbErr := errors.New("callback failed")
	pub := streamtest.NewPublisher[[]string]()
	sink := &stubSubscriber[string]{onComplete: func() error { return cbErr }}
	streams.FlattenMap(pub, stringBatch).Subscribe(sink)

	if err := pub.Complete(); !errors.Is(err, cbErr) {
		t.Fatalf("complete returned %v, want %v", err, cbErr)
	}
	if sink.completes != 1 {
		t.Errorf("completes = %d, want 1", sink.completes)
	}

	// Already terminated; later signals are dropped.
	mustComplete(t, pub)
	if sink.completes != 1 {
		t.Errorf("completes after second terminal = %d, want 1", sink.completes)
	}
}

func TestFlattenMap_ErrorCallbackFailurePropagates(t *testing.T) {
	cbErr := errors.New("callback failed")
	pub := streamtest.NewPublisher[[]string]()
	sink := &stubSubscriber[string]{onError: func(error) error { return cbErr }}
	streams.FlattenMap(pub, stringBatch).Subscribe(sink)

	if err := pub.Fail(errors.New("upstream failed")); !errors.Is(err, cbErr) {
		t.Fatalf("fail returned %v, want %v", err, cbErr)
	}
	if sink.errors != 1 {
		t.Errorf("errors = %d, want 1", sink.errors)
	}
}

func TestFlattenMap_FlushCallbackFailureReachesRequester(t *testing.T) {
	cbErr := errors.New("callback failed")
	pub := streamtest.NewPublisher[[]string]()
	sink := &stubSubscriber[string]{onComplete: func() error { return cbErr }}
	streams.FlattenMap(pub, stringBatch).Subscribe(sink)

	mustRequest(t, subOf(sink), 1)
	mustEmit(t, pub, []string{"a", "b"})
	mustComplete(t, pub)
	if sink.completes != 0 {
		t.Fatal("completion delivered while values remain undelivered")
	}

	// The request that drains the final value also flushes the terminal, so
	// the callback failure surfaces here.
	if err := sink.sub.Request(1); !errors.Is(err, cbErr) {
		t.Fatalf("request returned %v, want %v", err, cbErr)
	}
	if sink.completes != 1 {
		t.Errorf("completes = %d, want 1", sink.completes)
	}
	if pub.Subscription().Cancelled() {
		t.Error("upstream cancelled by a terminal callback failure")
	}
}

func TestFlattenMap_UnboundedDemand(t *testing.T) {
	pub, sink := newFlattenHarness()

	mustRequest(t, sink, streams.Unbounded)
	mustEmit(t, pub, []string{"one", "two", "three"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"one", "two", "three"}) {
		t.Errorf("got %v, want all three values", got)
	}
	if got := pub.Subscription().Requests(); got != 2 {
		t.Fatalf("upstream requests = %d, want 2", got)
	}

	mustEmit(t, pub, []string{"four"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"four"}) {
		t.Errorf("got %v, want [four]", got)
	}

	mustComplete(t, pub)
	if !sink.Completed() {
		t.Error("completion not delivered")
	}
}

func TestFlattenMap_DemandSaturates(t *testing.T) {
	pub, sink := newFlattenHarness()

	mustRequest(t, sink, streams.Unbounded-1)
	mustRequest(t, sink, 10)
	mustEmit(t, pub, []string{"a", "b"})
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v, want [a b]", got)
	}
	mustComplete(t, pub)
	if !sink.Completed() {
		t.Error("completion not delivered")
	}
}

func TestFlattenMap_InvalidDemandFailsStream(t *testing.T) {
	pub, sink := newFlattenHarness()

	if err := sink.Request(0); err != nil {
		t.Fatalf("request(0) returned %v, want nil", err)
	}
	if !errors.Is(sink.Failure(), streams.ErrInvalidDemand) {
		t.Errorf("failure = %v, want ErrInvalidDemand", sink.Failure())
	}
	if !pub.Subscription().Cancelled() {
		t.Error("upstream not cancelled on invalid demand")
	}

	mustEmit(t, pub, []string{"late"})
	if got := sink.TakeItems(); len(got) != 0 {
		t.Errorf("items after invalid demand = %v, want none", got)
	}
	if got := sink.Terminals(); got != 1 {
		t.Errorf("terminals = %d, want 1", got)
	}
}

func TestFlattenMap_ReentrantRequestFromOnNext(t *testing.T) {
	pub := streamtest.NewPublisher[[]string]()
	var sink *stubSubscriber[string]
	sink = &stubSubscriber[string]{onNext: func(string) error {
		return sink.sub.Request(1)
	}}
	streams.FlattenMap(pub, stringBatch).Subscribe(sink)

	mustRequest(t, subOf(sink), 1)
	mustEmit(t, pub, []string{"w", "x", "y", "z"})
	if !strSliceEqual(sink.items, []string{"w", "x", "y", "z"}) {
		t.Errorf("items = %v, want [w x y z]", sink.items)
	}
	if got := pub.Subscription().Requests(); got != 2 {
		t.Errorf("upstream requests = %d, want 2", got)
	}

	mustComplete(t, pub)
	if sink.completes != 1 {
		t.Errorf("completes = %d, want 1", sink.completes)
	}
}

func TestFlattenMap_ReentrantCancelFromOnNext(t *testing.T) {
	pub := streamtest.NewPublisher[[]string]()
	batch := streamtest.NewBatch("a", "b", "c")
	var sink *stubSubscriber[string]
	sink = &stubSubscriber[string]{onNext: func(v string) error {
		if v == "b" {
			sink.sub.Cancel()
		}
		return nil
	}}
	streams.FlattenMap(pub, func([]string) streams.Batch[string] { return batch }).Subscribe(sink)

	mustRequest(t, subOf(sink), 3)
	mustEmit(t, pub, []string{"ignored"})
	if !strSliceEqual(sink.items, []string{"a", "b"}) {
		t.Errorf("items = %v, want [a b]", sink.items)
	}
	if got := batch.Releases(); got != 1 {
		t.Errorf("batch releases = %d, want 1", got)
	}
	if !pub.Subscription().Cancelled() {
		t.Error("upstream not cancelled")
	}
	if sink.completes != 0 || sink.errors != 0 {
		t.Error("terminal delivered after cancel")
	}
}

func TestFlatten_Identity(t *testing.T) {
	pub := streamtest.NewPublisher[streams.Batch[string]]()
	sink := streamtest.NewSubscriber[string]()
	streams.Flatten[string](pub).Subscribe(sink)

	mustRequest(t, sink, 2)
	if err := pub.Emit(streams.BatchOf("x", "y")); err != nil {
		t.Fatalf("emit returned %v", err)
	}
	if got := sink.TakeItems(); !strSliceEqual(got, []string{"x", "y"}) {
		t.Errorf("got %v, want [x y]", got)
	}
	mustComplete(t, pub)
	if !sink.Completed() {
		t.Error("completion not delivered")
	}
}

func TestFlattenMap_ComposedWithSlicesAndCollect(t *testing.T) {
	src := streams.FromSlice([][]string{{"a", "b"}, {}, {"c"}})
	words := streams.FlattenMap(src, stringBatch)
	got, err := streams.Collect(context.Background(), words)
	if err != nil {
		t.Fatal(err)
	}
	if !strSliceEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("got %v, want [a b c]", got)
	}
}

// --- helpers ---

func stringBatch(v []string) streams.Batch[string] {
	return streams.BatchOf(v...)
}

// stubSubscriber records deliveries like streamtest.Subscriber but lets a
// test inject behavior into each callback.
type stubSubscriber[T any] struct {
	sub        streams.Subscription
	items      []T
	err        error
	completes  int
	errors     int
	onNext     func(T) error
	onComplete func() error
	onError    func(error) error
}

func (s *stubSubscriber[T]) OnSubscribe(sub streams.Subscription) { s.sub = sub }

func (s *stubSubscriber[T]) OnNext(v T) error {
	s.items = append(s.items, v)
	if s.onNext != nil {
		return s.onNext(v)
	}
	return nil
}

func (s *stubSubscriber[T]) OnComplete() error {
	s.completes++
	if s.onComplete != nil {
		return s.onComplete()
	}
	return nil
}

func (s *stubSubscriber[T]) OnError(err error) error {
	s.errors++
	s.err = err
	if s.onError != nil {
		return s.onError(err)
	}
	return nil
}

func subOf[T any](s *stubSubscriber[T]) streams.Subscription { return s.sub }

func mustRequest(t *testing.T, s interface{ Request(int64) error }, n int64) {
	t.Helper()
	if err := s.Request(n); err != nil {
		t.Fatalf("request(%d) returned %v", n, err)
	}
}

func mustEmit(t *testing.T, pub *streamtest.Publisher[[]string], v []string) {
	t.Helper()
	if err := pub.Emit(v); err != nil {
		t.Fatalf("emit returned %v", err)
	}
}

func mustComplete[T any](t *testing.T, pub *streamtest.Publisher[T]) {
	t.Helper()
	if err := pub.Complete(); err != nil {
		t.Fatalf("complete returned %v", err)
	}
}

func strSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
