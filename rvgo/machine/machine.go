package machine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum-optimism/rvpriv/rvgo/csr"
	"github.com/ethereum-optimism/rvpriv/rvgo/isa"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
	"github.com/ethereum-optimism/rvpriv/rvgo/translation"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

// Bus is the physical memory the machine is attached to.
type Bus interface {
	translation.PhysicalMemory
	WriteAll(addr uint64, data []byte) error
}

// Machine is a hart attached to a bus.
type Machine struct {
	Hart *Hart
	Bus  Bus
}

// New returns a machine with a hart reset to entry.
func New(bus Bus, entry uint64) *Machine {
	return &Machine{Hart: NewHart(entry), Bus: bus}
}

// pcUpdate is how the program counter moves after an instruction.
type pcUpdate struct {
	jump   bool
	target uint64
}

func pcAdd() pcUpdate { return pcUpdate{} }

func pcSet(addr uint64) pcUpdate { return pcUpdate{jump: true, target: addr} }

// PendingInterrupt returns the highest priority interrupt that is both
// pending and can be taken in the current mode.
func (m *Machine) PendingInterrupt() (traps.Interrupt, bool) {
	possible := m.Hart.CSRs.PossibleInterrupts(m.Hart.Mode)
	if possible == 0 {
		return 0, false
	}
	active := m.Hart.CSRs.Read(csr.Mip) & possible
	for _, irq := range traps.InterruptPriority {
		if active&irq.Bit() != 0 {
			return irq, true
		}
	}
	return 0, false
}

// Step runs a single instruction. A pending interrupt is taken first and
// the instruction at its handler is the one executed. Exceptions are
// delivered through trap entry, except for environment calls: those leave
// pc at the ecall and are returned as a traps.EnvironException error.
// Any other returned error is a host failure.
func (m *Machine) Step() error {
	h := m.Hart
	pc := h.PC
	if irq, ok := m.PendingInterrupt(); ok {
		h.CSRs.ClearBits(csr.Mip, irq.Bit())
		pc = h.TakeTrap(irq, h.PC)
	}

	upd, err := m.runAt(pc)
	if err != nil {
		var exc traps.Exception
		if !errors.As(err, &exc) {
			return fmt.Errorf("step at 0x%x: %w", pc, err)
		}
		if env, ok := exc.Environ(); ok {
			h.PC = pc
			return env
		}
		h.PC = h.TakeTrap(exc, pc)
		return nil
	}
	h.PC = upd.target
	return nil
}

func (m *Machine) runAt(pc uint64) (pcUpdate, error) {
	instr, err := m.fetch(pc)
	if err != nil {
		return pcUpdate{}, err
	}
	upd, err := m.execute(pc, instr)
	if err != nil {
		return pcUpdate{}, err
	}
	if !upd.jump {
		upd.target = pc + uint64(instr.Width)
	}
	return upd, nil
}

// StepManyResult reports how many instructions StepMany ran, and the
// environment call it stopped at, if any.
type StepManyResult struct {
	Steps     uint64
	Exception *traps.EnvironException
	// Err is set when a step failed on the host side.
	Err error
}

// StepMany steps while fewer than max steps ran and shouldContinue holds.
// It stops at the first environment call. The step that raised it is
// counted, so the caller resumes with max - Steps after handling the call.
func (m *Machine) StepMany(max uint64, shouldContinue func(*Machine) bool) StepManyResult {
	var res StepManyResult
	for res.Steps < max && (shouldContinue == nil || shouldContinue(m)) {
		if err := m.Step(); err != nil {
			var env traps.EnvironException
			if !errors.As(err, &env) {
				res.Err = err
				return res
			}
			res.Steps++
			res.Exception = &env
			return res
		}
		res.Steps++
	}
	return res
}

func (m *Machine) translate(vaddr uint64, access translation.AccessType) (uint64, error) {
	mode := m.Hart.Mode
	if access != translation.Instruction {
		mode = m.Hart.effectiveMode()
	}
	return translation.Translate(m.Bus, m.Hart.CSRs, mode, vaddr, access)
}

func (m *Machine) fetch(pc uint64) (isa.Instr, error) {
	pa, err := m.translate(pc, translation.Instruction)
	if err != nil {
		return isa.Instr{}, err
	}
	lo, err := m.Bus.Read(pa, 2)
	if err != nil {
		return isa.Instr{}, traps.InstructionAccessFault(pc)
	}
	return isa.Decode(uint16(lo), func() (uint16, error) {
		next, hiPA := pc+2, pa+2
		// the second halfword may sit on the next page
		if translation.PageOffset(next) == 0 {
			var err error
			if hiPA, err = m.translate(next, translation.Instruction); err != nil {
				return 0, err
			}
		}
		hi, err := m.Bus.Read(hiPA, 2)
		if err != nil {
			return 0, traps.InstructionAccessFault(pc)
		}
		return uint16(hi), nil
	})
}

func (m *Machine) load(vaddr uint64, width int) (uint64, error) {
	pa, err := m.translate(vaddr, translation.Load)
	if err != nil {
		return 0, err
	}
	v, err := m.Bus.Read(pa, width)
	if err != nil {
		return 0, traps.LoadAccessFault(vaddr)
	}
	return v, nil
}

func (m *Machine) store(vaddr uint64, width int, v uint64) error {
	pa, err := m.translate(vaddr, translation.Store)
	if err != nil {
		return err
	}
	if err := m.writePhys(pa, width, v); err != nil {
		return traps.StoreAccessFault(vaddr)
	}
	return nil
}

// writePhys writes the low width bytes of v, little-endian.
func (m *Machine) writePhys(pa uint64, width int, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return m.Bus.WriteAll(pa, buf[:width])
}

// Mode is the current privilege mode of the hart.
func (m *Machine) Mode() riscv.Mode { return m.Hart.Mode }
