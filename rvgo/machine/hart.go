package machine

import (
	"github.com/ethereum-optimism/rvpriv/rvgo/csr"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

// Reservation is the LR/SC reservation set of the hart.
type Reservation struct {
	Addr  uint64 `json:"addr"`
	Valid bool   `json:"valid"`
}

// Hart is the architectural state of a single hardware thread.
type Hart struct {
	PC          uint64      `json:"pc"`
	XRegisters  [32]uint64  `json:"xregisters"`
	FRegisters  [32]uint64  `json:"fregisters"`
	Mode        riscv.Mode  `json:"mode"`
	CSRs        *csr.File   `json:"csrs"`
	Reservation Reservation `json:"reservation"`
}

// NewHart returns a hart reset to entry.
func NewHart(entry uint64) *Hart {
	h := &Hart{CSRs: csr.NewFile()}
	h.Reset(entry)
	return h
}

// Reset zeroes all registers, installs the CSR defaults and starts
// execution at entry in Machine mode.
func (h *Hart) Reset(entry uint64) {
	h.PC = entry
	h.XRegisters = [32]uint64{}
	h.FRegisters = [32]uint64{}
	h.Mode = riscv.Machine
	if h.CSRs == nil {
		h.CSRs = csr.NewFile()
	}
	h.CSRs.Reset()
	h.Reservation = Reservation{}
}

// ReadX reads an integer register. x0 always reads zero.
func (h *Hart) ReadX(reg uint8) uint64 {
	if reg == 0 {
		return 0
	}
	return h.XRegisters[reg&31]
}

// WriteX writes an integer register. Writes to x0 are ignored.
func (h *Hart) WriteX(reg uint8, v uint64) {
	if reg == 0 {
		return
	}
	h.XRegisters[reg&31] = v
}

// TakeTrap performs trap entry for cause raised at pc and returns the
// address of the handler. The mode of the hart is switched to the mode the
// trap is handled in.
func (h *Hart) TakeTrap(cause traps.TrapCause, pc uint64) uint64 {
	trapMode := h.CSRs.GetTrapMode(cause, h.Mode)
	mstatus := h.CSRs.Read(csr.Mstatus)

	switch trapMode {
	case riscv.Supervisor:
		mstatus = csr.SetBit(mstatus, csr.SPIE, csr.Bit(mstatus, csr.SIE))
		mstatus = csr.SetBit(mstatus, csr.SIE, false)
		mstatus = csr.SetSPP(mstatus, h.Mode)
		h.CSRs.Write(csr.Mstatus, mstatus)
		h.CSRs.Write(csr.Sepc, pc)
		h.CSRs.Write(csr.Scause, cause.XCause())
		h.CSRs.Write(csr.Stval, cause.XTval())
	default:
		mstatus = csr.SetBit(mstatus, csr.MPIE, csr.Bit(mstatus, csr.MIE))
		mstatus = csr.SetBit(mstatus, csr.MIE, false)
		mstatus = csr.SetMPP(mstatus, h.Mode)
		h.CSRs.Write(csr.Mstatus, mstatus)
		h.CSRs.Write(csr.Mepc, pc)
		h.CSRs.Write(csr.Mcause, cause.XCause())
		h.CSRs.Write(csr.Mtval, cause.XTval())
	}

	h.Mode = trapMode
	return h.CSRs.GetTrapHandler(cause, trapMode)
}

// mret returns from a Machine mode trap handler.
func (h *Hart) mret() (uint64, error) {
	if h.Mode < riscv.Machine {
		return 0, traps.IllegalInstruction
	}
	mstatus := h.CSRs.Read(csr.Mstatus)
	prev := csr.GetMPP(mstatus)
	mstatus = csr.SetBit(mstatus, csr.MIE, csr.Bit(mstatus, csr.MPIE))
	mstatus = csr.SetBit(mstatus, csr.MPIE, true)
	mstatus = csr.SetMPP(mstatus, riscv.User)
	if prev != riscv.Machine {
		mstatus = csr.SetBit(mstatus, csr.MPRV, false)
	}
	h.CSRs.Write(csr.Mstatus, mstatus)
	h.Mode = prev
	return h.CSRs.Read(csr.Mepc), nil
}

// sret returns from a Supervisor mode trap handler.
func (h *Hart) sret() (uint64, error) {
	mstatus := h.CSRs.Read(csr.Mstatus)
	if h.Mode < riscv.Supervisor || (h.Mode == riscv.Supervisor && csr.Bit(mstatus, csr.TSR)) {
		return 0, traps.IllegalInstruction
	}
	prev := csr.GetSPP(mstatus)
	mstatus = csr.SetBit(mstatus, csr.SIE, csr.Bit(mstatus, csr.SPIE))
	mstatus = csr.SetBit(mstatus, csr.SPIE, true)
	mstatus = csr.SetSPP(mstatus, riscv.User)
	mstatus = csr.SetBit(mstatus, csr.MPRV, false)
	h.CSRs.Write(csr.Mstatus, mstatus)
	h.Mode = prev
	return h.CSRs.Read(csr.Sepc), nil
}

// effectiveMode is the privilege loads and stores are checked against:
// with mstatus.MPRV set, Machine mode accesses use MPP.
func (h *Hart) effectiveMode() riscv.Mode {
	if h.Mode != riscv.Machine {
		return h.Mode
	}
	mstatus := h.CSRs.Read(csr.Mstatus)
	if csr.Bit(mstatus, csr.MPRV) {
		return csr.GetMPP(mstatus)
	}
	return riscv.Machine
}
