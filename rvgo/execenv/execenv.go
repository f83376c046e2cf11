// Package execenv holds the execution environments that service the
// environment calls a machine cannot handle itself.
package execenv

import (
	"github.com/ethereum-optimism/rvpriv/rvgo/machine"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

// Outcome is the result of handling an environment call.
type Outcome struct {
	// Fatal reports a call the environment cannot service.
	Fatal bool
	// ContinueEval reports whether evaluation may proceed.
	ContinueEval bool
}

// Fatal is the outcome of an unserviceable call.
func Fatal() Outcome { return Outcome{Fatal: true} }

// Handled is the outcome of a serviced call.
func Handled(continueEval bool) Outcome { return Outcome{ContinueEval: continueEval} }

// Environment services environment calls surfaced by machine.Step.
type Environment interface {
	// HandleCall may mutate m, including taking a trap on its behalf.
	HandleCall(m *machine.Machine, exc traps.EnvironException) Outcome
	Reset()
}
