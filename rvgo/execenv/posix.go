package execenv

import (
	"math"

	"github.com/ethereum-optimism/rvpriv/rvgo/machine"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

// Posix is a minimal POSIX-like environment: it understands the exit call
// used by the RISC-V test suites and nothing else.
//
// Physical memory tests exit with a7 = 93 and a0 = 0 on success or
// a0 = 1 | (test << 1) on failure. Virtual memory tests never set a7 and
// exit with a0 = 1 on success.
type Posix struct {
	Code     uint64     `json:"code"`
	Exited   uint8      `json:"exited"`
	ExitMode riscv.Mode `json:"exitMode"`
}

var _ Environment = (*Posix)(nil)

func NewPosix() *Posix {
	p := &Posix{}
	p.Reset()
	return p
}

func (p *Posix) Reset() {
	p.Code = 0
	p.Exited = 0
	p.ExitMode = riscv.Machine
}

// HasExited reports whether an exit was requested.
func (p *Posix) HasExited() bool {
	return p.Exited > 0
}

// ExitCode returns the exit code, if an exit was requested.
func (p *Posix) ExitCode() (uint64, bool) {
	return p.Code, p.HasExited()
}

// SetExitMode configures the mode the exit call is expected from.
// Environment calls from other modes are delivered to the guest as traps.
func (p *Posix) SetExitMode(mode riscv.Mode) {
	p.ExitMode = mode
}

func (p *Posix) HandleCall(m *machine.Machine, exc traps.EnvironException) Outcome {
	if p.HasExited() {
		// can't exit twice
		return Fatal()
	}

	if exc.SourceMode() != p.ExitMode {
		h := m.Hart
		h.PC = h.TakeTrap(exc.Exception(), h.PC)
		return Handled(true)
	}

	a7 := m.Hart.ReadX(riscv.RegA7)
	a0 := m.Hart.ReadX(riscv.RegA0)
	switch {
	case a7 == riscv.SysExit && a0 == 0, a7 == riscv.SysExitLegacy && a0 == 1:
		return p.exit(0)
	case a7 == riscv.SysExit, a7 == riscv.SysExitLegacy:
		return p.exit(a0)
	}
	return Fatal()
}

func (p *Posix) exit(code uint64) Outcome {
	if p.Exited < math.MaxUint8 {
		p.Exited++
	}
	p.Code = code
	return Handled(false)
}
