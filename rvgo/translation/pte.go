package translation

// PTE is a raw 8-byte page table entry.
type PTE uint64

// PTE flag bits.
const (
	FlagV PTE = 1 << iota
	FlagR
	FlagW
	FlagX
	FlagU
	FlagG
	FlagA
	FlagD
)

const (
	pageOffsetWidth = 12
	vpnWidth        = 9
	ptePPNShift     = 10
	ptePPNMask      = uint64(1)<<44 - 1
)

func (p PTE) V() bool { return p&FlagV != 0 }
func (p PTE) R() bool { return p&FlagR != 0 }
func (p PTE) W() bool { return p&FlagW != 0 }
func (p PTE) X() bool { return p&FlagX != 0 }
func (p PTE) U() bool { return p&FlagU != 0 }
func (p PTE) G() bool { return p&FlagG != 0 }
func (p PTE) A() bool { return p&FlagA != 0 }
func (p PTE) D() bool { return p&FlagD != 0 }

// IsLeaf reports whether the entry maps a page rather than pointing to the
// next table level.
func (p PTE) IsLeaf() bool { return p.R() || p.X() }

// PPN is the full physical page number, bits 53:10.
func (p PTE) PPN() uint64 {
	return (uint64(p) >> ptePPNShift) & ptePPNMask
}

// ppnWidth is the width of PPN[i]. The top level takes the remaining bits
// of the 44-bit PPN.
func ppnWidth(mode SatpMode, i int) uint {
	if i == mode.Levels()-1 {
		return 44 - vpnWidth*uint(i)
	}
	return vpnWidth
}

// PPNi returns PPN[i] of the entry under the given scheme.
func (p PTE) PPNi(mode SatpMode, i int) uint64 {
	return (p.PPN() >> (vpnWidth * uint(i))) & (uint64(1)<<ppnWidth(mode, i) - 1)
}

// MakePTE builds an entry from a page number and flags.
func MakePTE(ppn uint64, flags PTE) PTE {
	return PTE((ppn&ptePPNMask)<<ptePPNShift) | flags&0x3FF
}

// VPN returns vaddr.VPN[i].
func VPN(vaddr uint64, i int) uint64 {
	return (vaddr >> (pageOffsetWidth + vpnWidth*uint(i))) & (uint64(1)<<vpnWidth - 1)
}

// PageOffset returns the low 12 bits of an address.
func PageOffset(addr uint64) uint64 {
	return addr & (uint64(1)<<pageOffsetWidth - 1)
}

// setPPNi places v into pa.PPN[i].
func setPPNi(pa uint64, mode SatpMode, i int, v uint64) uint64 {
	shift := pageOffsetWidth + vpnWidth*uint(i)
	mask := (uint64(1)<<ppnWidth(mode, i) - 1) << shift
	return pa&^mask | (v<<shift)&mask
}
