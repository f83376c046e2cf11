package isa

const (
	opLoad   = 0x03
	opLoadFP = 0x07
	opImm    = 0x13
	opImm32  = 0x1B
	opStore  = 0x23
	opStoreF = 0x27
	opReg    = 0x33
	opReg32  = 0x3B
	opLui    = 0x37
	opBranch = 0x63
	opJalr   = 0x67
	opJal    = 0x6F

	regZero = 0
	regRA   = 1
	regSP   = 2

	// cRegisterOffset maps the 3-bit register fields of the `C` formats onto x8-x15.
	cRegisterOffset = 8
)

// expandCompressed rewrites a 16-bit `C` extension instruction as its 32-bit
// standard counterpart. ok is false for illegal and reserved encodings.
func expandCompressed(c uint16) (raw uint32, ok bool) {
	// Fully unset bits is the defined illegal instruction, and would otherwise decode as C.ADDI4SPN.
	if c == 0 {
		return 0, false
	}
	rd := uint32(c>>7) & 0x1F
	rs2 := uint32(c>>2) & 0x1F
	rdP := cReg(c >> 2)  // rd' / rs2'
	rs1P := cReg(c >> 7) // rs1' / rd'

	switch c & 3 {
	// C0
	case 0x00:
		switch parseFunct3C(c) {
		case 0x00: // CIW - C.ADDI4SPN
			imm := ciwImm(c)
			if imm == 0 {
				return 0, false
			}
			return encodeI(imm, regSP, 0, rdP, opImm), true
		case 0x01: // CL - C.FLD
			return encodeI(clImmD(c), rs1P, 3, rdP, opLoadFP), true
		case 0x02: // CL - C.LW
			return encodeI(clImmW(c), rs1P, 2, rdP, opLoad), true
		case 0x03: // CL - C.LD
			return encodeI(clImmD(c), rs1P, 3, rdP, opLoad), true
		case 0x05: // CS - C.FSD
			return encodeS(clImmD(c), rdP, rs1P, 3, opStoreF), true
		case 0x06: // CS - C.SW
			return encodeS(clImmW(c), rdP, rs1P, 2, opStore), true
		case 0x07: // CS - C.SD
			return encodeS(clImmD(c), rdP, rs1P, 3, opStore), true
		}
	// C1
	case 0x01:
		switch parseFunct3C(c) {
		case 0x00: // CI - C.NOP | C.ADDI
			return encodeI(ciImm(c), rd, 0, rd, opImm), true
		case 0x01: // CI - C.ADDIW
			if rd == regZero {
				return 0, false
			}
			return encodeI(ciImm(c), rd, 0, rd, opImm32), true
		case 0x02: // CI - C.LI
			return encodeI(ciImm(c), regZero, 0, rd, opImm), true
		case 0x03: // CI - C.ADDI16SP | C.LUI
			if rd == regSP {
				imm := addi16spImm(c)
				if imm == 0 {
					return 0, false
				}
				return encodeI(imm, regSP, 0, regSP, opImm), true
			}
			imm := signExtend(uint64(c>>12&1)<<17|uint64(c>>2&0x1F)<<12, 17)
			if imm == 0 {
				return 0, false
			}
			return encodeU(imm, rd, opLui), true
		case 0x04: // C.SRLI, C.SRAI, C.ANDI, C.SUB, C.XOR, C.OR, C.AND, C.SUBW, C.ADDW
			return expandArith(c, rs1P, rdP)
		case 0x05: // CJ - C.J
			return encodeJ(cjImm(c), regZero, opJal), true
		case 0x06: // CB - C.BEQZ
			return encodeB(cbImm(c), regZero, rs1P, 0, opBranch), true
		case 0x07: // CB - C.BNEZ
			return encodeB(cbImm(c), regZero, rs1P, 1, opBranch), true
		}
	// C2
	case 0x02:
		switch parseFunct3C(c) {
		case 0x00: // CI - C.SLLI
			return encodeI(ciShamt(c), rd, 1, rd, opImm), true
		case 0x01: // CI - C.FLDSP
			return encodeI(ldspImm(c), regSP, 3, rd, opLoadFP), true
		case 0x02: // CI - C.LWSP
			if rd == regZero {
				return 0, false
			}
			imm := uint64(c>>12&1)<<5 | uint64(c>>4&0x7)<<2 | uint64(c>>2&0x3)<<6
			return encodeI(imm, regSP, 2, rd, opLoad), true
		case 0x03: // CI - C.LDSP
			if rd == regZero {
				return 0, false
			}
			return encodeI(ldspImm(c), regSP, 3, rd, opLoad), true
		case 0x04: // C.JR, C.MV, C.EBREAK, C.JALR, C.ADD
			if c>>12&1 == 0 {
				if rs2 == 0 {
					if rd == regZero {
						return 0, false
					}
					return encodeI(0, rd, 0, regZero, opJalr), true // C.JR
				}
				return encodeR(0, rs2, regZero, 0, rd, opReg), true // C.MV
			}
			if rs2 == 0 {
				if rd == regZero {
					return 0x0010_0073, true // C.EBREAK
				}
				return encodeI(0, rd, 0, regRA, opJalr), true // C.JALR
			}
			return encodeR(0, rs2, rd, 0, rd, opReg), true // C.ADD
		case 0x05: // CSS - C.FSDSP
			return encodeS(sdspImm(c), rs2, regSP, 3, opStoreF), true
		case 0x06: // CSS - C.SWSP
			imm := uint64(c>>9&0xF)<<2 | uint64(c>>7&0x3)<<6
			return encodeS(imm, rs2, regSP, 2, opStore), true
		case 0x07: // CSS - C.SDSP
			return encodeS(sdspImm(c), rs2, regSP, 3, opStore), true
		}
	}
	return 0, false
}

func expandArith(c uint16, rd, rs2 uint32) (uint32, bool) {
	switch c >> 10 & 0x3 {
	case 0x0: // C.SRLI
		return encodeI(ciShamt(c), rd, 5, rd, opImm), true
	case 0x1: // C.SRAI
		return encodeI(ciShamt(c)|0x400, rd, 5, rd, opImm), true
	case 0x2: // C.ANDI
		return encodeI(ciImm(c), rd, 7, rd, opImm), true
	}
	funct2 := c >> 5 & 0x3
	if c>>12&1 == 0 {
		switch funct2 {
		case 0x0: // C.SUB
			return encodeR(0x20, rs2, rd, 0, rd, opReg), true
		case 0x1: // C.XOR
			return encodeR(0, rs2, rd, 4, rd, opReg), true
		case 0x2: // C.OR
			return encodeR(0, rs2, rd, 6, rd, opReg), true
		default: // C.AND
			return encodeR(0, rs2, rd, 7, rd, opReg), true
		}
	}
	switch funct2 {
	case 0x0: // C.SUBW
		return encodeR(0x20, rs2, rd, 0, rd, opReg32), true
	case 0x1: // C.ADDW
		return encodeR(0, rs2, rd, 0, rd, opReg32), true
	}
	return 0, false
}

// parseFunct3C pulls the 3-bit function out of the high-order bits of a compressed instruction.
func parseFunct3C(c uint16) uint16 {
	return c >> 13
}

// cReg maps a 3-bit compressed register field to x8-x15:
// ┌─────┬─────┬─────┬─────┬─────┬─────┬─────┬─────┐
// │ 000 │ 001 │ 010 │ 011 │ 100 │ 101 │ 110 │ 111 │
// ├─────┼─────┼─────┼─────┼─────┼─────┼─────┼─────┤
// │ x8  │ x9  │ x10 │ x11 │ x12 │ x13 │ x14 │ x15 │
// └─────┴─────┴─────┴─────┴─────┴─────┴─────┴─────┘
func cReg(field uint16) uint32 {
	return uint32(field&0x7) + cRegisterOffset
}

// ciImm is the signed 6-bit immediate of the CI format: imm[5] = c[12], imm[4:0] = c[6:2].
func ciImm(c uint16) uint64 {
	return signExtend(uint64(c>>12&1)<<5|uint64(c>>2&0x1F), 5)
}

func ciShamt(c uint16) uint64 {
	return uint64(c>>12&1)<<5 | uint64(c>>2&0x1F)
}

// ciwImm is nzuimm[5:4|9:6|2|3] of C.ADDI4SPN.
func ciwImm(c uint16) uint64 {
	return uint64(c>>11&0x3)<<4 |
		uint64(c>>7&0xF)<<6 |
		uint64(c>>6&1)<<2 |
		uint64(c>>5&1)<<3
}

// clImmW is uimm[5:3|2|6] of C.LW / C.SW.
func clImmW(c uint16) uint64 {
	return uint64(c>>10&0x7)<<3 | uint64(c>>6&1)<<2 | uint64(c>>5&1)<<6
}

// clImmD is uimm[5:3|7:6] of C.LD / C.SD / C.FLD / C.FSD.
func clImmD(c uint16) uint64 {
	return uint64(c>>10&0x7)<<3 | uint64(c>>5&0x3)<<6
}

func addi16spImm(c uint16) uint64 {
	return signExtend(
		uint64(c>>12&1)<<9|
			uint64(c>>6&1)<<4|
			uint64(c>>5&1)<<6|
			uint64(c>>3&0x3)<<7|
			uint64(c>>2&1)<<5,
		9,
	)
}

func ldspImm(c uint16) uint64 {
	return uint64(c>>12&1)<<5 | uint64(c>>5&0x3)<<3 | uint64(c>>2&0x7)<<6
}

func sdspImm(c uint16) uint64 {
	return uint64(c>>10&0x7)<<3 | uint64(c>>7&0x7)<<6
}

// cjImm is offset[11|4|9:8|10|6|7|3:1|5] of C.J.
func cjImm(c uint16) uint64 {
	return signExtend(
		uint64(c>>12&1)<<11|
			uint64(c>>11&1)<<4|
			uint64(c>>9&0x3)<<8|
			uint64(c>>8&1)<<10|
			uint64(c>>7&1)<<6|
			uint64(c>>6&1)<<7|
			uint64(c>>3&0x7)<<1|
			uint64(c>>2&1)<<5,
		11,
	)
}

// cbImm is offset[8|4:3] (c[12:10]) and offset[7:6|2:1|5] (c[6:2]) of C.BEQZ / C.BNEZ.
func cbImm(c uint16) uint64 {
	return signExtend(
		uint64(c>>12&1)<<8|
			uint64(c>>10&0x3)<<3|
			uint64(c>>5&0x3)<<6|
			uint64(c>>3&0x3)<<1|
			uint64(c>>2&1)<<5,
		8,
	)
}
