package translation

import (
	"fmt"

	"github.com/ethereum-optimism/rvpriv/rvgo/csr"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

// PhysicalMemory is the part of the bus the page table walk needs.
type PhysicalMemory interface {
	Read(addr uint64, width int) (uint64, error)
}

// AccessType is the kind of memory access being translated.
type AccessType uint8

const (
	Instruction AccessType = iota
	Load
	Store
)

func (a AccessType) String() string {
	switch a {
	case Instruction:
		return "instruction"
	case Load:
		return "load"
	case Store:
		return "store"
	}
	return fmt.Sprintf("access(%d)", uint8(a))
}

// PageFault is the page fault matching the access type.
func (a AccessType) PageFault(vaddr uint64) traps.Exception {
	switch a {
	case Instruction:
		return traps.InstructionPageFault(vaddr)
	case Load:
		return traps.LoadPageFault(vaddr)
	default:
		return traps.StoreAMOPageFault(vaddr)
	}
}

// AccessFault is the access fault matching the access type.
func (a AccessType) AccessFault(vaddr uint64) traps.Exception {
	switch a {
	case Instruction:
		return traps.InstructionAccessFault(vaddr)
	case Load:
		return traps.LoadAccessFault(vaddr)
	default:
		return traps.StoreAccessFault(vaddr)
	}
}

// Translate maps vaddr to a physical address for an access made in mode.
// Machine mode and Bare (or unsupported) satp modes translate to vaddr
// itself. Failures are returned as traps.Exception values.
func Translate(mem PhysicalMemory, csrs *csr.File, mode riscv.Mode, vaddr uint64, access AccessType) (uint64, error) {
	if mode == riscv.Machine {
		return vaddr, nil
	}
	satp := csrs.Read(csr.Satp)
	sv, ok := GetSatpMode(satp)
	if !ok || sv == Bare {
		return vaddr, nil
	}
	return walk(mem, satp, sv, vaddr, access)
}

func walk(mem PhysicalMemory, satp uint64, sv SatpMode, vaddr uint64, access AccessType) (uint64, error) {
	levels := sv.Levels()
	i := levels - 1
	a := SatpPPN(satp) << pageOffsetWidth

	var pte PTE
	for {
		v, err := mem.Read(a+VPN(vaddr, i)*sv.PTESize(), 8)
		if err != nil {
			return 0, access.AccessFault(vaddr)
		}
		pte = PTE(v)

		if !pte.V() || (!pte.R() && pte.W()) {
			return 0, access.PageFault(vaddr)
		}
		if pte.IsLeaf() {
			break
		}
		if i == 0 {
			return 0, access.PageFault(vaddr)
		}
		i--
		a = pte.PPN() << pageOffsetWidth
	}

	// TODO: check R/W/X/U against the access type and mode, honouring mstatus.SUM and MXR.

	// superpages must be aligned to their size
	for j := 0; j < i; j++ {
		if pte.PPNi(sv, j) != 0 {
			return 0, access.PageFault(vaddr)
		}
	}

	// A and D are never updated by the walk.
	if !pte.A() || (access == Store && !pte.D()) {
		return 0, access.PageFault(vaddr)
	}

	pa := PageOffset(vaddr)
	for j := 0; j < i; j++ {
		pa = setPPNi(pa, sv, j, VPN(vaddr, j))
	}
	for j := i; j < levels; j++ {
		pa = setPPNi(pa, sv, j, pte.PPNi(sv, j))
	}
	return pa, nil
}
