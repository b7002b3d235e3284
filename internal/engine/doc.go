// Package engine adapts opaque search engines to the worker.
//
// An Adapter accepts protocol text synchronously and emits output lines into
// a Sink (the engine's output channel). Adapters that accept evaluation
// weights also implement WeightsLoader. Adapters holding OS resources
// implement io.Closer; the worker closes them on shutdown.
//
// Two families are provided:
//   - subprocess engines (Classical, Neural) speaking UCI over stdin/stdout
//   - in-process engines (Inline, InlineNeural, Loopback) running Go funcs on
//     the worker goroutine
//
// Every Sink has exactly one writer. For in-process engines that is the
// worker goroutine; for subprocess engines it is the stdout pump goroutine.
package engine
