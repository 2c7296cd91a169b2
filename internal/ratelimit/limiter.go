// Package ratelimit provides per-actor sliding-window request admission
// control.
//
// An actor is admitted while fewer than Limit admissions fall inside the
// trailing Window. Rejected calls still prune stale timestamps but record
// nothing, so a rejected request never extends an actor's penalty.
package ratelimit

// Limiter is the admission check applied to each triggering actor.
type Limiter interface {
	// Admit reports whether the actor may proceed and, if so, records the
	// admission. Pruning, the decision and the append are atomic with
	// respect to each other.
	Admit(actorID string) bool

	// Sweep drops actors whose entire window has aged out, bounding memory
	// for inactive actors. It never affects the correctness of Admit.
	Sweep()
}
