package strategy

import "tradepulse/internal/domain"

// Strategy turns one cycle's metric readings into a discrete signal.
// Implementations must be deterministic: identical readings always yield
// the identical signal. They are called synchronously from the engine
// loop.
type Strategy interface {
	Evaluate(r domain.Reading) domain.Signal
}
