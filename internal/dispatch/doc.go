// Package dispatch runs the worker loop that feeds commands to the engines.
//
// The loop pops envelopes from the command queue one at a time and executes
// each synchronously on a dedicated goroutine:
//   - *command.Move      → Adapter.ProcessCommand on the target engine
//   - *command.WeightsLoad → WeightsLoader.LoadWeights on the target engine
//   - *command.Shutdown  → close engines, stop
//
// Ordering:
//   - Strict FIFO, one envelope at a time
//   - Everything queued before Shutdown is executed; anything after is dropped
//
// Blocking:
//   - An engine call may run for as long as the engine likes. Nothing here can
//     interrupt it; a "stop" must be sent as a command of its own.
//   - No lock is held while an engine call is in flight.
//
// Programmer errors (panic, not logged):
//   - Move or WeightsLoad for an engine with no adapter
//   - WeightsLoad for an adapter that is not a WeightsLoader
package dispatch
