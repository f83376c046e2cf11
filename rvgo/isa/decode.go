package isa

// Decode decodes the instruction starting with the halfword lo. hi is only
// called for 32-bit encodings, to fetch the second halfword; its error is
// returned as-is. Encodings that are not recognised decode to Unknown or
// UnknownCompressed rather than failing.
func Decode(lo uint16, hi func() (uint16, error)) (Instr, error) {
	if isCompressed(lo) {
		raw, ok := expandCompressed(lo)
		if !ok {
			return Instr{Op: UnknownCompressed, Width: 2, Raw: uint32(lo)}, nil
		}
		instr := Decode32(raw)
		instr.Width = 2
		if instr.Op == Unknown {
			instr.Op = UnknownCompressed
		}
		return instr, nil
	}
	upper, err := hi()
	if err != nil {
		return Instr{}, err
	}
	return Decode32(uint32(lo) | uint32(upper)<<16), nil
}

// isCompressed reports whether the low two bits mark a 16-bit encoding.
func isCompressed(lo uint16) bool {
	return lo&3 != 3
}

// Decode32 decodes a standard 32-bit encoding.
func Decode32(raw uint32) Instr {
	out := Instr{Width: 4, Raw: raw}
	rd, rs1, rs2 := parseRd(raw), parseRs1(raw), parseRs2(raw)
	funct3 := parseFunct3(raw)
	funct7 := parseFunct7(raw)

	r := func(op Op) Instr {
		out.Op, out.Rd, out.Rs1, out.Rs2 = op, rd, rs1, rs2
		return out
	}
	i := func(op Op, imm uint64) Instr {
		out.Op, out.Rd, out.Rs1, out.Imm = op, rd, rs1, imm
		return out
	}

	switch parseOpcode(raw) {
	case 0x03: // 000_0011: loads
		ops := [8]Op{Lb, Lh, Lw, Ld, Lbu, Lhu, Lwu, Unknown}
		if ops[funct3] != Unknown {
			return i(ops[funct3], parseImmTypeI(raw))
		}
	case 0x07: // 000_0111: FLW / FLD
		switch funct3 {
		case 2:
			return i(Flw, parseImmTypeI(raw))
		case 3:
			return i(Fld, parseImmTypeI(raw))
		}
	case 0x23: // 010_0011: stores
		if funct3 < 4 {
			out.Op = [4]Op{Sb, Sh, Sw, Sd}[funct3]
			out.Rs1, out.Rs2, out.Imm = rs1, rs2, parseImmTypeS(raw)
			return out
		}
	case 0x27: // 010_0111: FSW / FSD
		if funct3 == 2 || funct3 == 3 {
			out.Op = Fsw
			if funct3 == 3 {
				out.Op = Fsd
			}
			out.Rs1, out.Rs2, out.Imm = rs1, rs2, parseImmTypeS(raw)
			return out
		}
	case 0x63: // 110_0011: branches
		ops := [8]Op{Beq, Bne, Unknown, Unknown, Blt, Bge, Bltu, Bgeu}
		if ops[funct3] != Unknown {
			out.Op = ops[funct3]
			out.Rs1, out.Rs2, out.Imm = rs1, rs2, parseImmTypeB(raw)
			return out
		}
	case 0x13: // 001_0011: immediate arithmetic
		imm := parseImmTypeI(raw)
		switch funct3 {
		case 0:
			return i(Addi, imm)
		case 1:
			if imm>>6 == 0 {
				return i(Slli, imm&0x3F)
			}
		case 2:
			return i(Slti, imm)
		case 3:
			return i(Sltiu, imm)
		case 4:
			return i(Xori, imm)
		case 5:
			// in rv64i the top 6 bits select the shift type
			switch (imm >> 6) & 0x3F {
			case 0x00:
				return i(Srli, imm&0x3F)
			case 0x10:
				return i(Srai, imm&0x3F)
			}
		case 6:
			return i(Ori, imm)
		case 7:
			return i(Andi, imm)
		}
	case 0x1B: // 001_1011: immediate arithmetic on 32 bits
		imm := parseImmTypeI(raw)
		switch funct3 {
		case 0:
			return i(Addiw, imm)
		case 1:
			if funct7 == 0 {
				return i(Slliw, imm&0x1F)
			}
		case 5:
			switch funct7 {
			case 0x00:
				return i(Srliw, imm&0x1F)
			case 0x20:
				return i(Sraiw, imm&0x1F)
			}
		}
	case 0x33: // 011_0011: register arithmetic
		switch funct7 {
		case 0x00:
			return r([8]Op{Add, Sll, Slt, Sltu, Xor, Srl, Or, And}[funct3])
		case 0x20:
			switch funct3 {
			case 0:
				return r(Sub)
			case 5:
				return r(Sra)
			}
		case 0x01: // RV M extension
			return r([8]Op{Mul, Mulh, Mulhsu, Mulhu, Div, Divu, Rem, Remu}[funct3])
		}
	case 0x3B: // 011_1011: register arithmetic on 32 bits
		switch funct7 {
		case 0x00:
			switch funct3 {
			case 0:
				return r(Addw)
			case 1:
				return r(Sllw)
			case 5:
				return r(Srlw)
			}
		case 0x20:
			switch funct3 {
			case 0:
				return r(Subw)
			case 5:
				return r(Sraw)
			}
		case 0x01:
			ops := [8]Op{Mulw, Unknown, Unknown, Unknown, Divw, Divuw, Remw, Remuw}
			if ops[funct3] != Unknown {
				return r(ops[funct3])
			}
		}
	case 0x37: // 011_0111: LUI
		out.Op, out.Rd, out.Imm = Lui, rd, parseImmTypeU(raw)
		return out
	case 0x17: // 001_0111: AUIPC
		out.Op, out.Rd, out.Imm = Auipc, rd, parseImmTypeU(raw)
		return out
	case 0x6F: // 110_1111: JAL
		out.Op, out.Rd, out.Imm = Jal, rd, parseImmTypeJ(raw)
		return out
	case 0x67: // 110_0111: JALR
		if funct3 == 0 {
			return i(Jalr, parseImmTypeI(raw))
		}
	case 0x73: // 111_0011: system
		return decodeSystem(out, raw)
	case 0x0F: // 000_1111: fences
		switch funct3 {
		case 0:
			out.Op = Fence
			out.Pred, out.Succ = uint8(raw>>24)&0xF, uint8(raw>>20)&0xF
			// fm = 1000 with RW,RW ordering
			if raw>>28 == 0x8 && out.Pred == 0x3 && out.Succ == 0x3 {
				out.Op = FenceTso
			}
			return out
		case 1:
			out.Op = FenceI
			return out
		}
	case 0x2F: // 010_1111: atomics
		return decodeAtomic(out, raw)
	case 0x53: // 101_0011: floating point
		return decodeFloat(out, raw)
	}
	return Instr{Op: Unknown, Width: 4, Raw: raw}
}

func decodeSystem(out Instr, raw uint32) Instr {
	rd, rs1 := parseRd(raw), parseRs1(raw)
	funct3 := parseFunct3(raw)
	if funct3 == 0 {
		switch raw {
		case 0x0000_0073:
			out.Op = Ecall
		case 0x0010_0073:
			out.Op = Ebreak
		case 0x3020_0073:
			out.Op = Mret
		case 0x1020_0073:
			out.Op = Sret
		case 0x7020_0073:
			out.Op = Mnret
		case 0x1050_0073:
			out.Op = Wfi
		default:
			if parseFunct7(raw) == 0x09 && rd == 0 {
				out.Op = SFenceVma
				out.Rs1, out.Rs2 = rs1, parseRs2(raw)
			} else {
				out.Op = Unknown
			}
		}
		return out
	}
	if funct3 == 4 {
		out.Op = Unknown
		return out
	}
	out.Rd, out.CSR = rd, parseCSR(raw)
	switch funct3 {
	case 1:
		out.Op, out.Rs1 = Csrrw, rs1
	case 2:
		out.Op, out.Rs1 = Csrrs, rs1
	case 3:
		out.Op, out.Rs1 = Csrrc, rs1
	case 5:
		out.Op, out.Imm = Csrrwi, uint64(rs1)
	case 6:
		out.Op, out.Imm = Csrrsi, uint64(rs1)
	case 7:
		out.Op, out.Imm = Csrrci, uint64(rs1)
	}
	return out
}

var amoOps = map[uint32][2]Op{
	0x02: {LrW, LrD},
	0x03: {ScW, ScD},
	0x01: {AmoswapW, AmoswapD},
	0x00: {AmoaddW, AmoaddD},
	0x04: {AmoxorW, AmoxorD},
	0x0C: {AmoandW, AmoandD},
	0x08: {AmoorW, AmoorD},
	0x10: {AmominW, AmominD},
	0x14: {AmomaxW, AmomaxD},
	0x18: {AmominuW, AmominuD},
	0x1C: {AmomaxuW, AmomaxuD},
}

func decodeAtomic(out Instr, raw uint32) Instr {
	// 0b010 == RV32A W variants, 0b011 == RV64A D variants
	funct3 := parseFunct3(raw)
	if funct3 != 2 && funct3 != 3 {
		return Instr{Op: Unknown, Width: 4, Raw: raw}
	}
	funct5 := raw >> 27
	ops, ok := amoOps[funct5]
	if !ok || (funct5 == 0x02 && parseRs2(raw) != 0) {
		return Instr{Op: Unknown, Width: 4, Raw: raw}
	}
	out.Op = ops[funct3-2]
	out.Rd, out.Rs1, out.Rs2 = parseRd(raw), parseRs1(raw), parseRs2(raw)
	out.Aq = raw>>26&1 == 1
	out.Rl = raw>>25&1 == 1
	return out
}

// decodeFloat only recognises the moves between and within register files.
// Arithmetic is left to Unknown.
func decodeFloat(out Instr, raw uint32) Instr {
	rd, rs1, rs2 := parseRd(raw), parseRs1(raw), parseRs2(raw)
	funct3 := parseFunct3(raw)
	op := Unknown
	switch parseFunct7(raw) {
	case 0x70:
		if rs2 == 0 && funct3 == 0 {
			op = FmvXW
		}
	case 0x78:
		if rs2 == 0 && funct3 == 0 {
			op = FmvWX
		}
	case 0x71:
		if rs2 == 0 && funct3 == 0 {
			op = FmvXD
		}
	case 0x79:
		if rs2 == 0 && funct3 == 0 {
			op = FmvDX
		}
	case 0x10:
		if funct3 < 3 {
			op = [3]Op{FsgnjS, FsgnjnS, FsgnjxS}[funct3]
		}
	case 0x11:
		if funct3 < 3 {
			op = [3]Op{FsgnjD, FsgnjnD, FsgnjxD}[funct3]
		}
	}
	if op == Unknown {
		return Instr{Op: Unknown, Width: 4, Raw: raw}
	}
	out.Op, out.Rd, out.Rs1, out.Rs2 = op, rd, rs1, rs2
	return out
}
