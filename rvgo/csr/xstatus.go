package csr

import "github.com/ethereum-optimism/rvpriv/rvgo/riscv"

// Bit offsets of the mstatus / sstatus / mnstatus fields.
const (
	SIE  = 1
	MIE  = 3
	SPIE = 5
	UBE  = 6
	MPIE = 7
	SPP  = 8
	VS   = 9  // 2 bits
	MPP  = 11 // 2 bits
	FS   = 13 // 2 bits
	XS   = 15 // 2 bits
	MPRV = 17
	SUM  = 18
	MXR  = 19
	TVM  = 20
	TW   = 21
	TSR  = 22
	UXL  = 32 // 2 bits
	SXL  = 34 // 2 bits
	SBE  = 36
	MBE  = 37
	SD   = 63

	NMIE = 3
	MNPV = 7
	MNPP = 11 // 2 bits
)

// ExtensionStatus is the value of the FS / VS / XS fields.
type ExtensionStatus uint64

const (
	ExtOff ExtensionStatus = iota
	ExtInitial
	ExtClean
	ExtDirty
)

// xlen64 is the MXL encoding of a 64-bit register width.
const xlen64 = 0b10

// SstatusMask selects the mstatus fields visible through sstatus.
const SstatusMask = uint64(1)<<SD |
	uint64(0b11)<<UXL |
	uint64(1)<<MXR |
	uint64(1)<<SUM |
	uint64(0b11)<<XS |
	uint64(0b11)<<FS |
	uint64(0b11)<<VS |
	uint64(1)<<SPP |
	uint64(1)<<UBE |
	uint64(1)<<SPIE |
	uint64(1)<<SIE

// Bit reports whether a single-bit field is set.
func Bit(v uint64, field uint) bool {
	return v&(uint64(1)<<field) != 0
}

// SetBit returns v with the single-bit field set or cleared.
func SetBit(v uint64, field uint, on bool) uint64 {
	if on {
		return v | uint64(1)<<field
	}
	return v &^ (uint64(1) << field)
}

// Field2 extracts a 2-bit field.
func Field2(v uint64, field uint) uint64 {
	return (v >> field) & 0b11
}

// SetField2 replaces a 2-bit field.
func SetField2(v uint64, field uint, x uint64) uint64 {
	return v&^(uint64(0b11)<<field) | (x&0b11)<<field
}

// GetMPP reads mstatus.MPP. The reserved encoding reads as User.
func GetMPP(mstatus uint64) riscv.Mode {
	return riscv.ModeFromBits(Field2(mstatus, MPP))
}

func SetMPP(mstatus uint64, m riscv.Mode) uint64 {
	return SetField2(mstatus, MPP, uint64(m))
}

// GetSPP reads mstatus.SPP, which can only hold User or Supervisor.
func GetSPP(mstatus uint64) riscv.Mode {
	if Bit(mstatus, SPP) {
		return riscv.Supervisor
	}
	return riscv.User
}

func SetSPP(mstatus uint64, m riscv.Mode) uint64 {
	return SetBit(mstatus, SPP, m != riscv.User)
}

func GetFS(mstatus uint64) ExtensionStatus {
	return ExtensionStatus(Field2(mstatus, FS))
}

func SetFS(mstatus uint64, s ExtensionStatus) uint64 {
	return SetField2(mstatus, FS, uint64(s))
}

func normalizeMode(v uint64, field uint) uint64 {
	return SetField2(v, field, uint64(riscv.ModeFromBits(Field2(v, field))))
}

func warlSstatus(v uint64) uint64 {
	dirty := ExtensionStatus(Field2(v, XS)) == ExtDirty ||
		ExtensionStatus(Field2(v, FS)) == ExtDirty ||
		ExtensionStatus(Field2(v, VS)) == ExtDirty
	v = SetBit(v, SD, dirty)
	return SetField2(v, UXL, xlen64)
}

func warlMstatus(v uint64) uint64 {
	v = warlSstatus(v)
	v = SetField2(v, SXL, xlen64)
	return normalizeMode(v, MPP)
}

func warlMnstatus(v uint64) uint64 {
	v = SetBit(v, MNPV, false)
	v = SetBit(v, NMIE, true)
	return normalizeMode(v, MNPP)
}

func defaultMstatus() uint64 {
	var v uint64
	v = SetSPP(v, riscv.Supervisor)
	v = SetMPP(v, riscv.Supervisor)
	v = SetField2(v, VS, uint64(ExtInitial))
	v = SetField2(v, FS, uint64(ExtInitial))
	v = SetField2(v, XS, uint64(ExtInitial))
	v = SetField2(v, UXL, xlen64)
	v = SetField2(v, SXL, xlen64)
	return SetBit(v, SUM, true)
}
