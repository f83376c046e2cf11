package isa

// Field and immediate extraction of the standard 32-bit formats.
// Immediates are returned sign-extended to 64 bits.

func signExtend(v uint64, bit uint) uint64 {
	shift := 63 - bit
	return uint64(int64(v<<shift) >> shift)
}

func parseImmTypeI(instr uint32) uint64 {
	return signExtend(uint64(instr>>20), 11)
}

func parseImmTypeS(instr uint32) uint64 {
	return signExtend(uint64(instr>>25)<<5|uint64(instr>>7)&0x1F, 11)
}

func parseImmTypeB(instr uint32) uint64 {
	return signExtend(
		uint64(instr>>8)&0xF<<1|
			uint64(instr>>25)&0x3F<<5|
			uint64(instr>>7)&1<<11|
			uint64(instr>>31)<<12,
		12,
	)
}

func parseImmTypeU(instr uint32) uint64 {
	return signExtend(uint64(instr&0xFFFF_F000), 31)
}

func parseImmTypeJ(instr uint32) uint64 {
	return signExtend(
		uint64(instr>>21)&0x3FF<<1|
			uint64(instr>>20)&1<<11|
			uint64(instr>>12)&0xFF<<12|
			uint64(instr>>31)<<20,
		20,
	)
}

func parseOpcode(instr uint32) uint32 { return instr & 0x7F }

func parseRd(instr uint32) uint8 { return uint8(instr>>7) & 0x1F }

func parseFunct3(instr uint32) uint32 { return (instr >> 12) & 0x7 }

func parseRs1(instr uint32) uint8 { return uint8(instr>>15) & 0x1F }

func parseRs2(instr uint32) uint8 { return uint8(instr>>20) & 0x1F }

func parseFunct7(instr uint32) uint32 { return instr >> 25 }

func parseCSR(instr uint32) uint16 { return uint16(instr >> 20) }

// Encoders, used to expand compressed instructions.

func encodeR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeI(imm uint64, rs1, funct3, rd, opcode uint32) uint32 {
	return uint32(imm&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeS(imm uint64, rs2, rs1, funct3, opcode uint32) uint32 {
	return uint32(imm>>5&0x7F)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | uint32(imm&0x1F)<<7 | opcode
}

func encodeB(imm uint64, rs2, rs1, funct3, opcode uint32) uint32 {
	return uint32(imm>>12&1)<<31 |
		uint32(imm>>5&0x3F)<<25 |
		rs2<<20 | rs1<<15 | funct3<<12 |
		uint32(imm>>1&0xF)<<8 |
		uint32(imm>>11&1)<<7 |
		opcode
}

func encodeU(imm uint64, rd, opcode uint32) uint32 {
	return uint32(imm)&0xFFFF_F000 | rd<<7 | opcode
}

func encodeJ(imm uint64, rd, opcode uint32) uint32 {
	return uint32(imm>>20&1)<<31 |
		uint32(imm>>1&0x3FF)<<21 |
		uint32(imm>>11&1)<<20 |
		uint32(imm>>12&0xFF)<<12 |
		rd<<7 | opcode
}
