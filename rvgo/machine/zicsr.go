package machine

import (
	"github.com/ethereum-optimism/rvpriv/rvgo/csr"
	"github.com/ethereum-optimism/rvpriv/rvgo/isa"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

type csrOp uint8

const (
	csrWrite csrOp = iota
	csrSet
	csrClear
)

func (m *Machine) runCSR(instr isa.Instr, op csrOp, writes bool) (pcUpdate, error) {
	return m.csrAccess(instr, op, m.Hart.ReadX(instr.Rs1), writes)
}

func (m *Machine) runCSRI(instr isa.Instr, op csrOp, writes bool) (pcUpdate, error) {
	return m.csrAccess(instr, op, instr.Imm, writes)
}

func isFloatCSR(reg csr.Register) bool {
	return reg == csr.Fflags || reg == csr.Frm || reg == csr.Fcsr
}

// csrAccess reads reg into rd and, if writes is set, combines src into it.
// csrrw with rd = x0 does not read the register.
func (m *Machine) csrAccess(instr isa.Instr, op csrOp, src uint64, writes bool) (pcUpdate, error) {
	h := m.Hart
	reg := csr.Register(instr.CSR)
	if err := csr.CheckImplemented(reg); err != nil {
		return pcUpdate{}, err
	}
	if err := csr.CheckPrivilege(reg, h.Mode); err != nil {
		return pcUpdate{}, err
	}
	mstatus := h.CSRs.Read(csr.Mstatus)
	if reg == csr.Satp && h.Mode == riscv.Supervisor && csr.Bit(mstatus, csr.TVM) {
		return pcUpdate{}, traps.IllegalInstruction
	}
	float := isFloatCSR(reg)
	if float && csr.GetFS(mstatus) == csr.ExtOff {
		return pcUpdate{}, traps.IllegalInstruction
	}
	if writes {
		if err := csr.CheckWrite(reg); err != nil {
			return pcUpdate{}, err
		}
	}

	var old uint64
	if op != csrWrite || instr.Rd != 0 {
		old = h.CSRs.Read(reg)
	}
	if writes {
		switch op {
		case csrWrite:
			h.CSRs.Write(reg, src)
		case csrSet:
			h.CSRs.Write(reg, old|src)
		case csrClear:
			h.CSRs.Write(reg, old&^src)
		}
		if float {
			m.markFloatDirty()
		}
	}
	h.WriteX(instr.Rd, old)
	return pcAdd(), nil
}
