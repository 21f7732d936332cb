package strategy

import (
	"math/rand/v2"
)

// Source supplies the uniform draws behind routing decisions. Only the
// probability law is contractual; the concrete generator is pluggable so
// tests can pin exact routing sequences.
type Source interface {
	// Float64 returns a uniform draw in [0, 1). Must be safe for concurrent
	// use: routers draw once per request, across requests.
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultSource returns the process-global PRNG, which is already
// goroutine-safe.
func DefaultSource() Source {
	return globalSource{}
}
