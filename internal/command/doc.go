// Package command defines the envelopes the host hands to the worker.
//
// An Envelope is a sealed tagged union with three variants:
//   - *Move carries one line of engine protocol text for a target engine
//   - *WeightsLoad carries a weights buffer for an engine that accepts one
//   - *Shutdown terminates the worker once everything before it is processed
//
// The variant is the tag. Consumers dispatch with a type switch; there is no
// "kind" field and no nil-payload convention to infer the command from.
package command
