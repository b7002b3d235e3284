package engine

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/mattjoyce/enginehost/internal/engine Adapter,WeightsLoader

// Adapter is the capability every engine has.
type Adapter interface {
	// ProcessCommand runs one command to completion. It may block for as long
	// as the engine needs and cannot be interrupted from outside; stopping a
	// search is itself a command.
	ProcessCommand(cmd string)
}

// WeightsLoader is implemented by engines whose evaluation weights can be
// replaced at runtime.
type WeightsLoader interface {
	Adapter
	LoadWeights(buf []byte)
}

// Sink receives engine output lines.
type Sink interface {
	Append(text string)
}

// SupportsWeights reports whether a accepts weights buffers.
func SupportsWeights(a Adapter) bool {
	_, ok := a.(WeightsLoader)
	return ok
}
