package csr

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/exp/slices"

	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

const slotCount = 1 << 12

// File holds the raw value of every CSR slot and applies the per-register
// write rules. Shadow registers have no storage of their own.
type File struct {
	values [slotCount]uint64
}

// NewFile returns a file with every slot zeroed. Call Reset to install the
// architectural defaults.
func NewFile() *File {
	return &File{}
}

// Reset zeroes every slot, then writes the default of each known register.
func (f *File) Reset() {
	f.values = [slotCount]uint64{}
	for _, reg := range Registers() {
		f.Write(reg, rules[reg].def)
	}
}

// legalize runs the WPRI, WARL and WLRL steps. ok is false when the write
// has to be dropped.
func legalize(reg Register, v uint64) (rl *rule, out uint64, ok bool) {
	rl, known := rules[reg]
	if !known {
		return nil, v, true
	}
	if rl.stub {
		return rl, 0, false
	}
	v &= rl.wpri
	if rl.warl != nil {
		if v, ok = rl.warl(v); !ok {
			return rl, 0, false
		}
	}
	if len(rl.legal) > 0 && !slices.Contains(rl.legal, v) {
		return rl, 0, false
	}
	return rl, v, true
}

// Write stores v into reg after legalization. Illegal values are dropped.
func (f *File) Write(reg Register, v uint64) {
	rl, v, ok := legalize(reg, v)
	if !ok {
		return
	}
	if rl != nil && rl.view != nil {
		s := rl.view
		ground := f.values[s.ground]
		f.values[s.ground] = (v<<s.shift)&s.mask | ground&^s.mask
		return
	}
	f.values[reg] = v
}

// Read returns the value of reg, projecting shadow registers from their
// ground truth.
func (f *File) Read(reg Register) uint64 {
	if rl, ok := rules[reg]; ok {
		if rl.stub {
			return 0
		}
		if s := rl.view; s != nil {
			return (f.values[s.ground] & s.mask) >> s.shift
		}
	}
	return f.values[reg]
}

// Replace writes v and returns the value reg had before.
func (f *File) Replace(reg Register, v uint64) uint64 {
	old := f.Read(reg)
	f.Write(reg, v)
	return old
}

// SetBits ORs mask into reg and returns the previous value.
func (f *File) SetBits(reg Register, mask uint64) uint64 {
	old := f.Read(reg)
	f.Write(reg, old|mask)
	return old
}

// ClearBits clears mask in reg and returns the previous value.
func (f *File) ClearBits(reg Register, mask uint64) uint64 {
	old := f.Read(reg)
	f.Write(reg, old&^mask)
	return old
}

// PossibleInterrupts returns the interrupt bits that may be taken in mode.
func (f *File) PossibleInterrupts(mode riscv.Mode) uint64 {
	mstatus := f.Read(Mstatus)
	mie := f.Read(Mie)

	machine := mie & traps.MachineInterruptMask
	if mode == riscv.Machine && !Bit(mstatus, MIE) {
		machine = 0
	}

	var supervisor uint64
	switch mode {
	case riscv.User:
		supervisor = mie & traps.SupervisorInterruptMask
	case riscv.Supervisor:
		if Bit(mstatus, SIE) {
			supervisor = mie & traps.SupervisorInterruptMask
		}
	}
	return machine | supervisor
}

// GetTrapMode returns the mode a trap raised in mode is handled in.
func (f *File) GetTrapMode(cause traps.TrapCause, mode riscv.Mode) riscv.Mode {
	if mode > riscv.Supervisor {
		return riscv.Machine
	}
	deleg := Medeleg
	if cause.IsInterrupt() {
		deleg = Mideleg
	}
	if f.Read(deleg)>>cause.ExceptionCode()&1 == 1 {
		return riscv.Supervisor
	}
	return riscv.Machine
}

// GetTrapHandler returns the handler address for cause in trapMode.
func (f *File) GetTrapHandler(cause traps.TrapCause, trapMode riscv.Mode) uint64 {
	xtvec := Mtvec
	if trapMode == riscv.Supervisor {
		xtvec = Stvec
	}
	return cause.TrapHandlerAddress(f.Read(xtvec))
}

// CheckPrivilege fails with IllegalInstruction if mode may not access reg.
func CheckPrivilege(reg Register, mode riscv.Mode) error {
	if Privilege(mode) < reg.Privilege() {
		return traps.IllegalInstruction
	}
	return nil
}

// CheckWrite fails with IllegalInstruction if reg is read-only.
func CheckWrite(reg Register) error {
	if reg.IsReadOnly() {
		return traps.IllegalInstruction
	}
	return nil
}

// CheckImplemented fails with IllegalInstruction for addresses that are not
// part of the register table.
func CheckImplemented(reg Register) error {
	if !reg.IsKnown() {
		return traps.IllegalInstruction
	}
	return nil
}

type slotEntry struct {
	Addr  uint16         `json:"addr"`
	Name  string         `json:"name,omitempty"`
	Value hexutil.Uint64 `json:"value"`
}

// MarshalJSON writes the non-zero raw slots in address order.
func (f *File) MarshalJSON() ([]byte, error) {
	entries := make([]slotEntry, 0)
	for i, v := range f.values {
		if v == 0 {
			continue
		}
		reg := Register(i)
		e := slotEntry{Addr: uint16(i), Value: hexutil.Uint64(v)}
		if reg.IsKnown() {
			e.Name = reg.String()
		}
		entries = append(entries, e)
	}
	return json.Marshal(entries)
}

func (f *File) UnmarshalJSON(data []byte) error {
	var entries []slotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Addr < entries[j].Addr })
	f.values = [slotCount]uint64{}
	for i, e := range entries {
		if int(e.Addr) >= slotCount {
			return fmt.Errorf("CSR entry %d: address 0x%x out of range", i, e.Addr)
		}
		if i > 0 && entries[i-1].Addr == e.Addr {
			return fmt.Errorf("CSR entry %d: duplicate address 0x%03x", i, e.Addr)
		}
		f.values[e.Addr] = uint64(e.Value)
	}
	return nil
}
