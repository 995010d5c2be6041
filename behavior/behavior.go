// Package behavior provides a stateless behavior tree evaluated once per
// AI tick. Nodes hold no per-tick execution state: everything mutable
// lives in the context value passed into Tick, so a single tree instance
// is safely shared across any number of agents.
package behavior

// Status is the result of ticking a node.
type Status uint8

const (
	Failure Status = iota
	Success
	Running // Still in progress; tick again next scheduled AI tick
)

// String returns the display name for a Status.
func (s Status) String() string {
	switch s {
	case Failure:
		return "failure"
	case Success:
		return "success"
	case Running:
		return "running"
	}
	return "unknown"
}

// Node is a behavior tree node generic over the per-agent context type.
// Trees are built once and never mutated at runtime.
type Node[C any] interface {
	Tick(ctx C) Status
}

type selectorNode[C any] struct {
	children []Node[C]
}

// Selector ticks children in order until one returns Success or Running.
// It returns Failure only if every child fails. Models priority-ordered
// fallback: earlier children preempt later ones on every tick.
func Selector[C any](children ...Node[C]) Node[C] {
	return &selectorNode[C]{children: children}
}

func (n *selectorNode[C]) Tick(ctx C) Status {
	for _, c := range n.children {
		if s := c.Tick(ctx); s != Failure {
			return s
		}
	}
	return Failure
}

type sequenceNode[C any] struct {
	children []Node[C]
}

// Sequence ticks children in order while each returns Success, stopping
// at the first Failure or Running. It does not remember progress across
// ticks: each call re-evaluates from the first child, so guard
// conditions are re-validated every tick.
func Sequence[C any](children ...Node[C]) Node[C] {
	return &sequenceNode[C]{children: children}
}

func (n *sequenceNode[C]) Tick(ctx C) Status {
	for _, c := range n.children {
		if s := c.Tick(ctx); s != Success {
			return s
		}
	}
	return Success
}

type conditionNode[C any] struct {
	pred func(ctx C) bool
}

// Condition wraps a side-effect-free predicate. It returns Success or
// Failure, never Running.
func Condition[C any](pred func(ctx C) bool) Node[C] {
	return &conditionNode[C]{pred: pred}
}

func (n *conditionNode[C]) Tick(ctx C) Status {
	if n.pred(ctx) {
		return Success
	}
	return Failure
}

type actionNode[C any] struct {
	fn func(ctx C) Status
}

// Action wraps a state-mutating function. Running means "call me again
// next tick"; any continuation state belongs in the context, never on a
// call stack.
func Action[C any](fn func(ctx C) Status) Node[C] {
	return &actionNode[C]{fn: fn}
}

func (n *actionNode[C]) Tick(ctx C) Status {
	return n.fn(ctx)
}
