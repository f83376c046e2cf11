package machine

import (
	"fmt"

	"github.com/ethereum-optimism/rvpriv/rvgo/csr"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
)

// Segment is a contiguous range of the program image, placed at a
// physical address.
type Segment struct {
	Addr uint64
	Data []byte
}

// End is the first address after the segment.
func (s Segment) End() uint64 { return s.Addr + uint64(len(s.Data)) }

// Program is a loaded executable: the entry point and the memory image.
type Program struct {
	Entry    uint64
	Segments []Segment
}

// End is the first address after the highest segment, or the entry point
// for a program without segments.
func (p *Program) End() uint64 {
	if len(p.Segments) == 0 {
		return p.Entry
	}
	var end uint64
	for _, seg := range p.Segments {
		end = max(end, seg.End())
	}
	return end
}

// MachineError is a failure of the host side of the machine, as opposed to
// a trap raised by the guest.
type MachineError struct {
	Op   string
	Addr uint64
	Err  error
}

func (e *MachineError) Error() string {
	return fmt.Sprintf("%s at 0x%x: %v", e.Op, e.Addr, e.Err)
}

func (e *MachineError) Unwrap() error { return e.Err }

// SetupBoot resets the hart to the program entry, writes the program image
// and prepares the registers the boot protocol expects: a0 holds the hart
// id, a1 the address following the image. Execution starts in mode, with
// every exception and interrupt delegated.
func (m *Machine) SetupBoot(p *Program, mode riscv.Mode) error {
	m.Hart.Reset(p.Entry)
	for _, seg := range p.Segments {
		if err := m.Bus.WriteAll(seg.Addr, seg.Data); err != nil {
			return &MachineError{Op: "write program segment", Addr: seg.Addr, Err: err}
		}
	}

	m.Hart.WriteX(riscv.RegA0, 0)
	m.Hart.WriteX(riscv.RegA1, p.End())
	m.Hart.Mode = mode
	m.Hart.CSRs.Write(csr.Medeleg, ^uint64(0))
	m.Hart.CSRs.Write(csr.Mideleg, ^uint64(0))
	return nil
}
