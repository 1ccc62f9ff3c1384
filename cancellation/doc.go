// Package cancellation provides hierarchical cancellation sources.
//
// A root Source is owned by the processor; linked sources are created per
// supervised lease and per task. Cancelling a source cancels every descendant,
// and a Token can be passed anywhere a context.Context is expected.
package cancellation
