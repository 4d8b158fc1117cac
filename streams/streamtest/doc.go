// Package streamtest provides test doubles for exercising streams operators.
//
// Publisher is driven by hand from test code, Subscriber records everything
// delivered to it, and Batch counts Release calls. Together they let a test
// pin down the exact order of values, terminals, demand, and cancellation on
// both sides of an operator:
//
//	source := streamtest.NewPublisher[string]()
//	sink := streamtest.NewSubscriber[string]()
//	streams.FlattenMap(source, toBatch).Subscribe(sink)
//
//	sink.Request(2)
//	source.Emit("a b c")
//	got := sink.TakeItems() // ["a", "b"]
package streamtest
