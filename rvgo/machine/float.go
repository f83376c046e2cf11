package machine

import (
	"github.com/ethereum-optimism/rvpriv/rvgo/csr"
	"github.com/ethereum-optimism/rvpriv/rvgo/isa"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

const (
	nanBoxMask = uint64(0xFFFF_FFFF) << 32
	// canonicalNaN32 replaces single precision operands that are not NaN-boxed.
	canonicalNaN32 = uint64(0x7FC0_0000)
)

func nanBox(v uint64) uint64 {
	return nanBoxMask | v&0xFFFF_FFFF
}

func unbox(v uint64) uint64 {
	if v&nanBoxMask != nanBoxMask {
		return canonicalNaN32
	}
	return v & 0xFFFF_FFFF
}

func (m *Machine) markFloatDirty() {
	mstatus := m.Hart.CSRs.Read(csr.Mstatus)
	m.Hart.CSRs.Write(csr.Mstatus, csr.SetFS(mstatus, csr.ExtDirty))
}

func (m *Machine) writeF(reg uint8, v uint64) {
	m.Hart.FRegisters[reg&31] = v
	m.markFloatDirty()
}

// signInject combines the magnitude of a with the sign chosen by op from
// the sign bits of a and b. signBit is 31 or 63.
func signInject(op isa.Op, a, b uint64, signBit uint) uint64 {
	sa, sb := a>>signBit&1, b>>signBit&1
	var sign uint64
	switch op {
	case isa.FsgnjS, isa.FsgnjD:
		sign = sb
	case isa.FsgnjnS, isa.FsgnjnD:
		sign = sb ^ 1
	default:
		sign = sa ^ sb
	}
	return a&^(1<<signBit) | sign<<signBit
}

// runFloat executes the loads, stores, moves and sign injections of the
// F and D extensions. All of them require mstatus.FS to be on.
func (m *Machine) runFloat(instr isa.Instr) (pcUpdate, error) {
	h := m.Hart
	if csr.GetFS(h.CSRs.Read(csr.Mstatus)) == csr.ExtOff {
		return pcUpdate{}, traps.IllegalInstruction
	}
	f := &h.FRegisters
	switch instr.Op {
	case isa.Flw, isa.Fld:
		width := 4
		if instr.Op == isa.Fld {
			width = 8
		}
		v, err := m.load(h.ReadX(instr.Rs1)+instr.Imm, width)
		if err != nil {
			return pcUpdate{}, err
		}
		if width == 4 {
			v = nanBox(v)
		}
		m.writeF(instr.Rd, v)
	case isa.Fsw:
		if err := m.store(h.ReadX(instr.Rs1)+instr.Imm, 4, f[instr.Rs2]); err != nil {
			return pcUpdate{}, err
		}
	case isa.Fsd:
		if err := m.store(h.ReadX(instr.Rs1)+instr.Imm, 8, f[instr.Rs2]); err != nil {
			return pcUpdate{}, err
		}
	case isa.FmvXW:
		h.WriteX(instr.Rd, signExtend32(f[instr.Rs1]))
	case isa.FmvWX:
		m.writeF(instr.Rd, nanBox(h.ReadX(instr.Rs1)))
	case isa.FmvXD:
		h.WriteX(instr.Rd, f[instr.Rs1])
	case isa.FmvDX:
		m.writeF(instr.Rd, h.ReadX(instr.Rs1))
	case isa.FsgnjS, isa.FsgnjnS, isa.FsgnjxS:
		m.writeF(instr.Rd, nanBox(signInject(instr.Op, unbox(f[instr.Rs1]), unbox(f[instr.Rs2]), 31)))
	case isa.FsgnjD, isa.FsgnjnD, isa.FsgnjxD:
		m.writeF(instr.Rd, signInject(instr.Op, f[instr.Rs1], f[instr.Rs2], 63))
	default:
		return pcUpdate{}, traps.IllegalInstruction
	}
	return pcAdd(), nil
}
