// Package strategy defines the signal-producer interface and a registry
// mapping configured names to implementations. The engine depends only on
// the interface, never on concrete strategies.
package strategy

import (
	"fmt"
	"sort"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// Params are the per-strategy parameters from config.
type Params map[string]float64

// Get returns the named parameter or def when absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Strategy is a single decision unit. It must be side-effect-free with
// respect to engine state: same window and price always yield the same
// signal (required for reproducible backtests).
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// MinPeriods returns the minimum number of bars the strategy needs
	// before it can produce a signal.
	MinPeriods() int

	// GenerateSignal evaluates a data window (oldest first) and the current
	// price. It returns nil when the strategy has no opinion this cycle.
	GenerateSignal(window []domain.Candle, currentPrice float64) (*domain.Signal, error)
}

// Factory builds a strategy from its configured parameters.
type Factory func(params Params) (Strategy, error)

// Registry maps strategy names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Builtin returns a registry with all built-in strategies registered.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register("sma-cross", NewSMACross)
	r.Register("momentum", NewMomentum)
	return r
}

// Register adds a factory under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Create instantiates the named strategy with the given parameters.
func (r *Registry) Create(name string, params Params) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("strategy.Create: unknown strategy %q (known: %v)", name, r.List())
	}
	s, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("strategy.Create: %s: %w", name, err)
	}
	return s, nil
}

// List returns all registered strategy names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sma computes the simple moving average of the last n closes.
func sma(window []domain.Candle, n int) float64 {
	if n <= 0 || len(window) < n {
		return 0
	}
	sum := 0.0
	for _, c := range window[len(window)-n:] {
		sum += c.Close
	}
	return sum / float64(n)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
