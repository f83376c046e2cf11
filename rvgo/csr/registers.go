package csr

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Register is a 12-bit CSR address.
type Register uint16

// Privilege is the minimum privilege needed to access a CSR.
type Privilege uint8

const (
	Unprivileged   Privilege = 0
	SupervisorPriv Privilege = 1
	HypervisorPriv Privilege = 2
	MachinePriv    Privilege = 3
)

const (
	// Unprivileged floating-point CSRs
	Fflags Register = 0x001
	Frm    Register = 0x002
	Fcsr   Register = 0x003

	// Unprivileged counters / timers
	Cycle        Register = 0xC00
	Time         Register = 0xC01
	Instret      Register = 0xC02
	Hpmcounter3  Register = 0xC03
	Hpmcounter31 Register = 0xC1F

	// Supervisor trap setup
	Sstatus    Register = 0x100
	Sie        Register = 0x104
	Stvec      Register = 0x105
	Scounteren Register = 0x106

	Senvcfg Register = 0x10A

	// Supervisor trap handling
	Sscratch Register = 0x140
	Sepc     Register = 0x141
	Scause   Register = 0x142
	Stval    Register = 0x143
	Sip      Register = 0x144

	Satp Register = 0x180

	Scontext Register = 0x5A8

	// Hypervisor, stubbed
	Hstatus    Register = 0x600
	Hedeleg    Register = 0x602
	Hideleg    Register = 0x603
	Hie        Register = 0x604
	Htimedelta Register = 0x605
	Hcounteren Register = 0x606
	Hgeie      Register = 0x607
	Henvcfg    Register = 0x60A
	Htval      Register = 0x643
	Hip        Register = 0x644
	Hvip       Register = 0x645
	Htinst     Register = 0x64A
	Hgatp      Register = 0x680
	Hcontext   Register = 0x6A8
	Hgeip      Register = 0xE12

	// Virtual supervisor, stubbed
	Vsstatus  Register = 0x200
	Vsie      Register = 0x204
	Vstvec    Register = 0x205
	Vsscratch Register = 0x240
	Vsepc     Register = 0x241
	Vscause   Register = 0x242
	Vstval    Register = 0x243
	Vsip      Register = 0x244
	Vsatp     Register = 0x280

	// Machine information
	Mvendorid  Register = 0xF11
	Marchid    Register = 0xF12
	Mimpid     Register = 0xF13
	Mhartid    Register = 0xF14
	Mconfigptr Register = 0xF15

	// Machine trap setup
	Mstatus    Register = 0x300
	Misa       Register = 0x301
	Medeleg    Register = 0x302
	Mideleg    Register = 0x303
	Mie        Register = 0x304
	Mtvec      Register = 0x305
	Mcounteren Register = 0x306

	Menvcfg Register = 0x30A
	Mseccfg Register = 0x747

	// Machine trap handling
	Mscratch Register = 0x340
	Mepc     Register = 0x341
	Mcause   Register = 0x342
	Mtval    Register = 0x343
	Mip      Register = 0x344
	Mtinst   Register = 0x34A
	Mtval2   Register = 0x34B

	// Physical memory protection
	Pmpcfg0   Register = 0x3A0
	Pmpcfg14  Register = 0x3AE
	Pmpaddr0  Register = 0x3B0
	Pmpaddr63 Register = 0x3EF

	// Resumable NMI
	Mnscratch Register = 0x740
	Mnepc     Register = 0x741
	Mncause   Register = 0x742
	Mnstatus  Register = 0x744

	// Machine counters
	Mcycle        Register = 0xB00
	Minstret      Register = 0xB02
	Mhpmcounter3  Register = 0xB03
	Mhpmcounter31 Register = 0xB1F
	Mcountinhibit Register = 0x320
	Mhpmevent3    Register = 0x323
	Mhpmevent31   Register = 0x33F

	// Debug / trace
	Tselect   Register = 0x7A0
	Tdata1    Register = 0x7A1
	Tdata2    Register = 0x7A2
	Tdata3    Register = 0x7A3
	Tcontrol  Register = 0x7A5
	Mcontext  Register = 0x7A8
	Dcsr      Register = 0x7B0
	Dpc       Register = 0x7B1
	Dscratch0 Register = 0x7B2
	Dscratch1 Register = 0x7B3
)

// Privilege is encoded in address bits 9:8.
func (r Register) Privilege() Privilege {
	return Privilege((r >> 8) & 0b11)
}

// IsReadOnly is true when address bits 11:10 are 0b11.
func (r Register) IsReadOnly() bool {
	return (r>>10)&0b11 == 0b11
}

// IsKnown reports whether the register is implemented (possibly as a stub).
func (r Register) IsKnown() bool {
	_, ok := rules[r]
	return ok
}

func (r Register) String() string {
	if rl, ok := rules[r]; ok {
		return rl.name
	}
	return fmt.Sprintf("csr(0x%03x)", uint16(r))
}

// Registers lists every known CSR in address order.
func Registers() []Register {
	out := make([]Register, 0, len(rules))
	for r := range rules {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// Lookup finds a CSR by name.
func Lookup(name string) (Register, bool) {
	r, ok := byName[name]
	return r, ok
}
