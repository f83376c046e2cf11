package isa

import "fmt"

// Op identifies a decoded instruction.
type Op uint16

const (
	Unknown Op = iota
	UnknownCompressed

	// RV64I register-register
	Add
	Sub
	Xor
	Or
	And
	Sll
	Srl
	Sra
	Slt
	Sltu
	Addw
	Subw
	Sllw
	Srlw
	Sraw

	// RV64I register-immediate
	Addi
	Xori
	Ori
	Andi
	Slli
	Srli
	Srai
	Slti
	Sltiu
	Addiw
	Slliw
	Srliw
	Sraiw

	Lb
	Lh
	Lw
	Lbu
	Lhu
	Lwu
	Ld
	Sb
	Sh
	Sw
	Sd

	Beq
	Bne
	Blt
	Bge
	Bltu
	Bgeu

	Lui
	Auipc
	Jal
	Jalr

	Ecall
	Ebreak
	Fence
	FenceTso
	FenceI

	// Zicsr
	Csrrw
	Csrrs
	Csrrc
	Csrrwi
	Csrrsi
	Csrrci

	// privileged
	Mret
	Sret
	Mnret
	Wfi
	SFenceVma

	// RV64M
	Mul
	Mulh
	Mulhsu
	Mulhu
	Div
	Divu
	Rem
	Remu
	Mulw
	Divw
	Divuw
	Remw
	Remuw

	// RV64A
	LrW
	ScW
	AmoswapW
	AmoaddW
	AmoxorW
	AmoandW
	AmoorW
	AmominW
	AmomaxW
	AmominuW
	AmomaxuW
	LrD
	ScD
	AmoswapD
	AmoaddD
	AmoxorD
	AmoandD
	AmoorD
	AmominD
	AmomaxD
	AmominuD
	AmomaxuD

	// F / D moves
	Flw
	Fsw
	Fld
	Fsd
	FmvXW
	FmvWX
	FmvXD
	FmvDX
	FsgnjS
	FsgnjnS
	FsgnjxS
	FsgnjD
	FsgnjnD
	FsgnjxD

	opCount
)

var opNames = [opCount]string{
	Unknown: "unknown", UnknownCompressed: "unknown.c",
	Add: "add", Sub: "sub", Xor: "xor", Or: "or", And: "and",
	Sll: "sll", Srl: "srl", Sra: "sra", Slt: "slt", Sltu: "sltu",
	Addw: "addw", Subw: "subw", Sllw: "sllw", Srlw: "srlw", Sraw: "sraw",
	Addi: "addi", Xori: "xori", Ori: "ori", Andi: "andi",
	Slli: "slli", Srli: "srli", Srai: "srai", Slti: "slti", Sltiu: "sltiu",
	Addiw: "addiw", Slliw: "slliw", Srliw: "srliw", Sraiw: "sraiw",
	Lb: "lb", Lh: "lh", Lw: "lw", Lbu: "lbu", Lhu: "lhu", Lwu: "lwu", Ld: "ld",
	Sb: "sb", Sh: "sh", Sw: "sw", Sd: "sd",
	Beq: "beq", Bne: "bne", Blt: "blt", Bge: "bge", Bltu: "bltu", Bgeu: "bgeu",
	Lui: "lui", Auipc: "auipc", Jal: "jal", Jalr: "jalr",
	Ecall: "ecall", Ebreak: "ebreak", Fence: "fence", FenceTso: "fence.tso", FenceI: "fence.i",
	Csrrw: "csrrw", Csrrs: "csrrs", Csrrc: "csrrc",
	Csrrwi: "csrrwi", Csrrsi: "csrrsi", Csrrci: "csrrci",
	Mret: "mret", Sret: "sret", Mnret: "mnret", Wfi: "wfi", SFenceVma: "sfence.vma",
	Mul: "mul", Mulh: "mulh", Mulhsu: "mulhsu", Mulhu: "mulhu",
	Div: "div", Divu: "divu", Rem: "rem", Remu: "remu",
	Mulw: "mulw", Divw: "divw", Divuw: "divuw", Remw: "remw", Remuw: "remuw",
	LrW: "lr.w", ScW: "sc.w", AmoswapW: "amoswap.w", AmoaddW: "amoadd.w",
	AmoxorW: "amoxor.w", AmoandW: "amoand.w", AmoorW: "amoor.w",
	AmominW: "amomin.w", AmomaxW: "amomax.w", AmominuW: "amominu.w", AmomaxuW: "amomaxu.w",
	LrD: "lr.d", ScD: "sc.d", AmoswapD: "amoswap.d", AmoaddD: "amoadd.d",
	AmoxorD: "amoxor.d", AmoandD: "amoand.d", AmoorD: "amoor.d",
	AmominD: "amomin.d", AmomaxD: "amomax.d", AmominuD: "amominu.d", AmomaxuD: "amomaxu.d",
	Flw: "flw", Fsw: "fsw", Fld: "fld", Fsd: "fsd",
	FmvXW: "fmv.x.w", FmvWX: "fmv.w.x", FmvXD: "fmv.x.d", FmvDX: "fmv.d.x",
	FsgnjS: "fsgnj.s", FsgnjnS: "fsgnjn.s", FsgnjxS: "fsgnjx.s",
	FsgnjD: "fsgnj.d", FsgnjnD: "fsgnjn.d", FsgnjxD: "fsgnjx.d",
}

func (o Op) String() string {
	if o < opCount && opNames[o] != "" {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint16(o))
}

// Format is the operand shape of an instruction.
type Format uint8

const (
	FormatNone Format = iota
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
	FormatCSR
	FormatCSRI
	FormatFence
	FormatAmo
	FormatFloat
)

// Format reports which operand fields of Instr are meaningful for o.
func (o Op) Format() Format {
	switch {
	case o >= Add && o <= Sraw, o >= Mul && o <= Remuw, o == SFenceVma:
		return FormatR
	case o >= Addi && o <= Lwu, o == Ld, o == Jalr:
		return FormatI
	case o >= Sb && o <= Sd:
		return FormatS
	case o >= Beq && o <= Bgeu:
		return FormatB
	case o == Lui, o == Auipc:
		return FormatU
	case o == Jal:
		return FormatJ
	case o >= Csrrw && o <= Csrrc:
		return FormatCSR
	case o >= Csrrwi && o <= Csrrci:
		return FormatCSRI
	case o == Fence, o == FenceTso:
		return FormatFence
	case o >= LrW && o <= AmomaxuD:
		return FormatAmo
	case o >= Flw && o <= FsgnjxD:
		return FormatFloat
	}
	return FormatNone
}

// Instr is a decoded instruction. Only the operand fields of the op's
// Format are set. Imm is sign-extended to 64 bits; for CSR immediates it
// holds the zero-extended uimm.
type Instr struct {
	Op    Op
	Width uint8 // encoded size in bytes, 2 or 4

	Rd  uint8
	Rs1 uint8
	Rs2 uint8
	Imm uint64
	CSR uint16

	// atomics
	Aq bool
	Rl bool

	// fences
	Pred uint8
	Succ uint8

	// Raw is the 32-bit encoding. Compressed instructions hold their expansion.
	Raw uint32
}

// Compressed reports whether the instruction was encoded in 16 bits.
func (i Instr) Compressed() bool { return i.Width == 2 }

func (i Instr) String() string {
	switch i.Op.Format() {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rd, i.Rs1, int64(i.Imm))
	case FormatS:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, int64(i.Imm), i.Rs1)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, int64(i.Imm))
	case FormatU, FormatJ:
		return fmt.Sprintf("%s x%d, %d", i.Op, i.Rd, int64(i.Imm))
	case FormatCSR:
		return fmt.Sprintf("%s x%d, 0x%03x, x%d", i.Op, i.Rd, i.CSR, i.Rs1)
	case FormatCSRI:
		return fmt.Sprintf("%s x%d, 0x%03x, %d", i.Op, i.Rd, i.CSR, i.Imm)
	case FormatAmo:
		return fmt.Sprintf("%s x%d, x%d, (x%d)", i.Op, i.Rd, i.Rs2, i.Rs1)
	case FormatFloat:
		return fmt.Sprintf("%s %d, %d, %d", i.Op, i.Rd, i.Rs1, i.Rs2)
	}
	if i.Op == Unknown || i.Op == UnknownCompressed {
		return fmt.Sprintf("%s 0x%08x", i.Op, i.Raw)
	}
	return i.Op.String()
}
