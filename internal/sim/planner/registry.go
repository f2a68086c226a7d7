package planner

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"caravan.ai/internal/sim/plan"
	"caravan.ai/internal/sim/strategy"
	"caravan.ai/internal/sim/unit"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Handler appends steps for one strategy kind. It must only append to p.
type Handler interface {
	AddStepsToPlan(u *unit.Unit, s strategy.Strategy, p *plan.Plan) error
}

type HandlerFunc func(u *unit.Unit, s strategy.Strategy, p *plan.Plan) error

func (f HandlerFunc) AddStepsToPlan(u *unit.Unit, s strategy.Strategy, p *plan.Plan) error {
	return f(u, s, p)
}

// Registry maps strategy kinds to handlers. It is filled during startup and
// read-only while planning runs; it does no locking of its own.
type Registry struct {
	handlers map[strategy.Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[strategy.Kind]Handler{}}
}

// Register inserts or replaces the handler for kind.
func (r *Registry) Register(kind strategy.Kind, h Handler) error {
	if isNilHandler(h) {
		return fmt.Errorf("%w: nil handler for %s", ErrInvalidArgument, kind)
	}
	r.handlers[kind] = h
	return nil
}

// isNilHandler also catches typed nils such as (*ShuttleTrade)(nil).
func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Interface, reflect.Chan, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func (r *Registry) Lookup(kind strategy.Kind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

func (r *Registry) Kinds() []strategy.Kind {
	out := make([]strategy.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MakePlan dispatches to the handler registered for s.Kind. On failure p keeps
// whatever the handler appended before failing; callers discard it.
func (r *Registry) MakePlan(u *unit.Unit, s strategy.Strategy, p *plan.Plan) error {
	h, ok := r.handlers[s.Kind]
	if !ok {
		return fmt.Errorf("%w: no planner for strategy %q", ErrNotFound, s.Kind)
	}
	return h.AddStepsToPlan(u, s, p)
}
