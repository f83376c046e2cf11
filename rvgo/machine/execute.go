package machine

import (
	"github.com/ethereum-optimism/rvpriv/rvgo/csr"
	"github.com/ethereum-optimism/rvpriv/rvgo/isa"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

func (m *Machine) execute(pc uint64, instr isa.Instr) (pcUpdate, error) {
	h := m.Hart
	switch instr.Op {
	// RV64I register-register
	case isa.Add:
		return m.runR(instr, func(a, b uint64) uint64 { return a + b })
	case isa.Sub:
		return m.runR(instr, func(a, b uint64) uint64 { return a - b })
	case isa.Xor:
		return m.runR(instr, func(a, b uint64) uint64 { return a ^ b })
	case isa.Or:
		return m.runR(instr, func(a, b uint64) uint64 { return a | b })
	case isa.And:
		return m.runR(instr, func(a, b uint64) uint64 { return a & b })
	case isa.Sll:
		return m.runR(instr, func(a, b uint64) uint64 { return a << (b & 0x3F) })
	case isa.Srl:
		return m.runR(instr, func(a, b uint64) uint64 { return a >> (b & 0x3F) })
	case isa.Sra:
		return m.runR(instr, func(a, b uint64) uint64 { return uint64(int64(a) >> (b & 0x3F)) })
	case isa.Slt:
		return m.runR(instr, func(a, b uint64) uint64 { return boolToU64(int64(a) < int64(b)) })
	case isa.Sltu:
		return m.runR(instr, func(a, b uint64) uint64 { return boolToU64(a < b) })
	case isa.Addw:
		return m.runR(instr, func(a, b uint64) uint64 { return signExtend32(a + b) })
	case isa.Subw:
		return m.runR(instr, func(a, b uint64) uint64 { return signExtend32(a - b) })
	case isa.Sllw:
		return m.runR(instr, func(a, b uint64) uint64 { return signExtend32(uint64(uint32(a) << (b & 0x1F))) })
	case isa.Srlw:
		return m.runR(instr, func(a, b uint64) uint64 { return signExtend32(uint64(uint32(a) >> (b & 0x1F))) })
	case isa.Sraw:
		return m.runR(instr, func(a, b uint64) uint64 { return uint64(int64(int32(uint32(a)) >> (b & 0x1F))) })

	// RV64M
	case isa.Mul:
		return m.runR(instr, func(a, b uint64) uint64 { return a * b })
	case isa.Mulh:
		return m.runR(instr, mulh)
	case isa.Mulhsu:
		return m.runR(instr, mulhsu)
	case isa.Mulhu:
		return m.runR(instr, mulhu)
	case isa.Div:
		return m.runR(instr, sdiv64)
	case isa.Divu:
		return m.runR(instr, div64)
	case isa.Rem:
		return m.runR(instr, srem64)
	case isa.Remu:
		return m.runR(instr, rem64)
	case isa.Mulw:
		return m.runR(instr, func(a, b uint64) uint64 { return signExtend32(a * b) })
	case isa.Divw:
		return m.runR(instr, sdiv32)
	case isa.Divuw:
		return m.runR(instr, div32)
	case isa.Remw:
		return m.runR(instr, srem32)
	case isa.Remuw:
		return m.runR(instr, rem32)

	// RV64I register-immediate
	case isa.Addi:
		return m.runI(instr, func(a, imm uint64) uint64 { return a + imm })
	case isa.Xori:
		return m.runI(instr, func(a, imm uint64) uint64 { return a ^ imm })
	case isa.Ori:
		return m.runI(instr, func(a, imm uint64) uint64 { return a | imm })
	case isa.Andi:
		return m.runI(instr, func(a, imm uint64) uint64 { return a & imm })
	case isa.Slli:
		return m.runI(instr, func(a, imm uint64) uint64 { return a << imm })
	case isa.Srli:
		return m.runI(instr, func(a, imm uint64) uint64 { return a >> imm })
	case isa.Srai:
		return m.runI(instr, func(a, imm uint64) uint64 { return uint64(int64(a) >> imm) })
	case isa.Slti:
		return m.runI(instr, func(a, imm uint64) uint64 { return boolToU64(int64(a) < int64(imm)) })
	case isa.Sltiu:
		return m.runI(instr, func(a, imm uint64) uint64 { return boolToU64(a < imm) })
	case isa.Addiw:
		return m.runI(instr, func(a, imm uint64) uint64 { return signExtend32(a + imm) })
	case isa.Slliw:
		return m.runI(instr, func(a, imm uint64) uint64 { return signExtend32(uint64(uint32(a) << imm)) })
	case isa.Srliw:
		return m.runI(instr, func(a, imm uint64) uint64 { return signExtend32(uint64(uint32(a) >> imm)) })
	case isa.Sraiw:
		return m.runI(instr, func(a, imm uint64) uint64 { return uint64(int64(int32(uint32(a)) >> imm)) })

	// loads and stores
	case isa.Lb:
		return m.runLoad(instr, 1, true)
	case isa.Lh:
		return m.runLoad(instr, 2, true)
	case isa.Lw:
		return m.runLoad(instr, 4, true)
	case isa.Ld:
		return m.runLoad(instr, 8, false)
	case isa.Lbu:
		return m.runLoad(instr, 1, false)
	case isa.Lhu:
		return m.runLoad(instr, 2, false)
	case isa.Lwu:
		return m.runLoad(instr, 4, false)
	case isa.Sb:
		return m.runStore(instr, 1)
	case isa.Sh:
		return m.runStore(instr, 2)
	case isa.Sw:
		return m.runStore(instr, 4)
	case isa.Sd:
		return m.runStore(instr, 8)

	// branches
	case isa.Beq:
		return m.runBranch(pc, instr, func(a, b uint64) bool { return a == b })
	case isa.Bne:
		return m.runBranch(pc, instr, func(a, b uint64) bool { return a != b })
	case isa.Blt:
		return m.runBranch(pc, instr, func(a, b uint64) bool { return int64(a) < int64(b) })
	case isa.Bge:
		return m.runBranch(pc, instr, func(a, b uint64) bool { return int64(a) >= int64(b) })
	case isa.Bltu:
		return m.runBranch(pc, instr, func(a, b uint64) bool { return a < b })
	case isa.Bgeu:
		return m.runBranch(pc, instr, func(a, b uint64) bool { return a >= b })

	// upper immediates and jumps
	case isa.Lui:
		h.WriteX(instr.Rd, instr.Imm)
		return pcAdd(), nil
	case isa.Auipc:
		h.WriteX(instr.Rd, pc+instr.Imm)
		return pcAdd(), nil
	case isa.Jal:
		h.WriteX(instr.Rd, pc+uint64(instr.Width))
		return pcSet(pc + instr.Imm), nil
	case isa.Jalr:
		// target is computed before rd is written, rd may equal rs1
		target := (h.ReadX(instr.Rs1) + instr.Imm) &^ 1
		h.WriteX(instr.Rd, pc+uint64(instr.Width))
		return pcSet(target), nil

	// system
	case isa.Ecall:
		return pcUpdate{}, traps.EnvCall(h.Mode)
	case isa.Ebreak:
		return pcUpdate{}, traps.Breakpoint
	case isa.Fence, isa.FenceI:
		return pcAdd(), nil
	case isa.Mret:
		target, err := h.mret()
		return pcSet(target), err
	case isa.Sret:
		target, err := h.sret()
		return pcSet(target), err
	case isa.Wfi:
		if h.Mode < riscv.Machine && csr.Bit(h.CSRs.Read(csr.Mstatus), csr.TW) {
			return pcUpdate{}, traps.IllegalInstruction
		}
		return pcAdd(), nil
	case isa.SFenceVma:
		switch {
		case h.Mode == riscv.User:
			return pcUpdate{}, traps.IllegalInstruction
		case h.Mode == riscv.Supervisor && csr.Bit(h.CSRs.Read(csr.Mstatus), csr.TVM):
			return pcUpdate{}, traps.IllegalInstruction
		}
		return pcAdd(), nil

	// Zicsr
	case isa.Csrrw:
		return m.runCSR(instr, csrWrite, true)
	case isa.Csrrs:
		return m.runCSR(instr, csrSet, instr.Rs1 != 0)
	case isa.Csrrc:
		return m.runCSR(instr, csrClear, instr.Rs1 != 0)
	case isa.Csrrwi:
		return m.runCSRI(instr, csrWrite, true)
	case isa.Csrrsi:
		return m.runCSRI(instr, csrSet, instr.Imm != 0)
	case isa.Csrrci:
		return m.runCSRI(instr, csrClear, instr.Imm != 0)

	// RV64A
	case isa.LrW:
		return m.runLR(instr, 4)
	case isa.LrD:
		return m.runLR(instr, 8)
	case isa.ScW:
		return m.runSC(instr, 4)
	case isa.ScD:
		return m.runSC(instr, 8)
	case isa.AmoswapW, isa.AmoswapD:
		return m.runAMO(instr, func(_, src uint64) uint64 { return src })
	case isa.AmoaddW, isa.AmoaddD:
		return m.runAMO(instr, func(old, src uint64) uint64 { return old + src })
	case isa.AmoxorW, isa.AmoxorD:
		return m.runAMO(instr, func(old, src uint64) uint64 { return old ^ src })
	case isa.AmoandW, isa.AmoandD:
		return m.runAMO(instr, func(old, src uint64) uint64 { return old & src })
	case isa.AmoorW, isa.AmoorD:
		return m.runAMO(instr, func(old, src uint64) uint64 { return old | src })
	case isa.AmominW, isa.AmominD:
		// operands are sign-extended for the W forms, so the 64-bit comparisons hold
		return m.runAMO(instr, func(old, src uint64) uint64 {
			if int64(old) < int64(src) {
				return old
			}
			return src
		})
	case isa.AmomaxW, isa.AmomaxD:
		return m.runAMO(instr, func(old, src uint64) uint64 {
			if int64(old) > int64(src) {
				return old
			}
			return src
		})
	case isa.AmominuW:
		return m.runAMO(instr, func(old, src uint64) uint64 {
			if uint32(old) < uint32(src) {
				return old
			}
			return src
		})
	case isa.AmomaxuW:
		return m.runAMO(instr, func(old, src uint64) uint64 {
			if uint32(old) > uint32(src) {
				return old
			}
			return src
		})
	case isa.AmominuD:
		return m.runAMO(instr, func(old, src uint64) uint64 {
			if old < src {
				return old
			}
			return src
		})
	case isa.AmomaxuD:
		return m.runAMO(instr, func(old, src uint64) uint64 {
			if old > src {
				return old
			}
			return src
		})

	// F / D moves
	case isa.Flw, isa.Fld, isa.Fsw, isa.Fsd,
		isa.FmvXW, isa.FmvWX, isa.FmvXD, isa.FmvDX,
		isa.FsgnjS, isa.FsgnjnS, isa.FsgnjxS,
		isa.FsgnjD, isa.FsgnjnD, isa.FsgnjxD:
		return m.runFloat(instr)
	}

	// Unknown, UnknownCompressed, FenceTso, Mnret
	return pcUpdate{}, traps.IllegalInstruction
}

func (m *Machine) runR(instr isa.Instr, f func(a, b uint64) uint64) (pcUpdate, error) {
	h := m.Hart
	h.WriteX(instr.Rd, f(h.ReadX(instr.Rs1), h.ReadX(instr.Rs2)))
	return pcAdd(), nil
}

func (m *Machine) runI(instr isa.Instr, f func(a, imm uint64) uint64) (pcUpdate, error) {
	h := m.Hart
	h.WriteX(instr.Rd, f(h.ReadX(instr.Rs1), instr.Imm))
	return pcAdd(), nil
}

func (m *Machine) runBranch(pc uint64, instr isa.Instr, cond func(a, b uint64) bool) (pcUpdate, error) {
	h := m.Hart
	if cond(h.ReadX(instr.Rs1), h.ReadX(instr.Rs2)) {
		return pcSet(pc + instr.Imm), nil
	}
	return pcAdd(), nil
}

func (m *Machine) runLoad(instr isa.Instr, width int, signed bool) (pcUpdate, error) {
	h := m.Hart
	v, err := m.load(h.ReadX(instr.Rs1)+instr.Imm, width)
	if err != nil {
		return pcUpdate{}, err
	}
	if signed {
		v = signExtendWidth(v, width)
	}
	h.WriteX(instr.Rd, v)
	return pcAdd(), nil
}

func (m *Machine) runStore(instr isa.Instr, width int) (pcUpdate, error) {
	h := m.Hart
	if err := m.store(h.ReadX(instr.Rs1)+instr.Imm, width, h.ReadX(instr.Rs2)); err != nil {
		return pcUpdate{}, err
	}
	return pcAdd(), nil
}

func signExtendWidth(v uint64, width int) uint64 {
	shift := 64 - 8*uint(width)
	return uint64(int64(v<<shift) >> shift)
}
