package csr

import (
	"fmt"

	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

// ones returns a mask of the n lowest bits.
func ones(n uint) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<n - 1
}

// Bits that survive the WPRI clearing step. A zero bit is reserved.
var (
	mstatusWPRI  = ^(1 | 1<<2 | 1<<4 | ones(9)<<23 | ones(25)<<38)
	menvcfgWPRI  = ^(ones(3)<<1 | ones(54)<<8)
	mseccfgWPRI  = ^(ones(5)<<3 | ones(54)<<10)
	sstatusWPRI  = ^(1 | ones(3)<<2 | 1<<7 | ones(2)<<11 | 1<<17 | ones(12)<<20 | ones(29)<<34)
	senvcfgWPRI  = ^(ones(3)<<1 | ones(56)<<8)
	mncauseWPRI  = ^(uint64(1) << 63)
	mnstatusWPRI = ^(ones(3) | ones(3)<<4 | ones(3)<<8 | ones(51)<<13)
)

// MisaValue is the fixed misa of an RV64IMACDSU hart.
const MisaValue = uint64(0b10)<<62 |
	1<<('A'-'A') |
	1<<('C'-'A') |
	1<<('D'-'A') |
	1<<('I'-'A') |
	1<<('M'-'A') |
	1<<('S'-'A') |
	1<<('U'-'A')

var (
	medelegMask = ^(1<<10 | 1<<11 | 1<<14 | ones(48)<<16)
	midelegMask = ^(1 | 1<<2 | 1<<4 | 1<<6 | 1<<8 | 1<<10 | ones(4)<<12 | ones(48)<<16)
	mipMask     = traps.MachineInterruptMask | traps.SupervisorInterruptMask
	sipMask     = traps.SupervisorInterruptMask
)

const (
	fflagsMask = uint64(0x1F)
	frmShift   = 5
	frmMask    = uint64(0b111) << frmShift
	fcsrMask   = uint64(0xFF)
)

// satp MODE encodings accepted on write.
const (
	satpModeShift = 60
	satpBare      = 0
	satpSv39      = 8
	satpSv48      = 9
	satpSv57      = 10
)

func warlSatp(v uint64) (uint64, bool) {
	switch v >> satpModeShift {
	case satpBare, satpSv39, satpSv48, satpSv57:
		return v, true
	default:
		return 0, false
	}
}

func masked(mask uint64) func(uint64) (uint64, bool) {
	return func(v uint64) (uint64, bool) { return v & mask, true }
}

func always(f func(uint64) uint64) func(uint64) (uint64, bool) {
	return func(v uint64) (uint64, bool) { return f(v), true }
}

// shadow describes a register that is a view onto a slice of another one.
type shadow struct {
	ground Register
	mask   uint64
	shift  uint
}

type rule struct {
	name  string
	wpri  uint64
	warl  func(uint64) (uint64, bool)
	legal []uint64
	view  *shadow
	def   uint64
	stub  bool
}

type option func(*rule)

func withWPRI(keep uint64) option { return func(r *rule) { r.wpri = keep } }

func withWARL(f func(uint64) (uint64, bool)) option { return func(r *rule) { r.warl = f } }

func withLegal(values ...uint64) option { return func(r *rule) { r.legal = values } }

func withDefault(v uint64) option { return func(r *rule) { r.def = v } }

func shadowOf(ground Register, mask uint64, shift uint) option {
	return func(r *rule) { r.view = &shadow{ground: ground, mask: mask, shift: shift} }
}

// stubbed registers always read zero and ignore writes.
func stubbed(r *rule) { r.stub = true }

var (
	rules  = make(map[Register]*rule)
	byName = make(map[string]Register)
)

func define(reg Register, name string, opts ...option) {
	if _, ok := rules[reg]; ok {
		panic(fmt.Errorf("duplicate CSR definition 0x%03x (%s)", uint16(reg), name))
	}
	r := &rule{name: name, wpri: ^uint64(0)}
	for _, opt := range opts {
		opt(r)
	}
	rules[reg] = r
	byName[name] = reg
}

// defineRange names each register after its offset from first, plus start.
func defineRange(first, last Register, step Register, prefix string, start int, opts ...option) {
	for reg := first; reg <= last; reg += step {
		define(reg, fmt.Sprintf("%s%d", prefix, start+int(reg-first)), opts...)
	}
}

func interruptCause(code uint64) uint64 { return uint64(1)<<63 | code }

var mcauseLegal = []uint64{
	interruptCause(1), interruptCause(3), interruptCause(5),
	interruptCause(7), interruptCause(9), interruptCause(11),
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 11, 12, 13, 15,
}

var scauseLegal = []uint64{
	interruptCause(1), interruptCause(5), interruptCause(9),
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 12, 13, 15,
}

func init() {
	xtvec := always(func(v uint64) uint64 { return v &^ 0b10 })
	xepc := always(func(v uint64) uint64 { return v &^ 1 })

	define(Fflags, "fflags", shadowOf(Fcsr, fflagsMask, 0))
	define(Frm, "frm", shadowOf(Fcsr, frmMask, frmShift))
	define(Fcsr, "fcsr", withWARL(masked(fcsrMask)))

	define(Cycle, "cycle")
	define(Time, "time")
	define(Instret, "instret")
	defineRange(Hpmcounter3, Hpmcounter31, 1, "hpmcounter", 3)

	define(Sstatus, "sstatus",
		withWPRI(sstatusWPRI),
		withWARL(always(warlSstatus)),
		shadowOf(Mstatus, SstatusMask, 0),
		withDefault(warlSstatus(defaultMstatus()&SstatusMask)))
	define(Sie, "sie", withWARL(masked(sipMask)), shadowOf(Mie, sipMask, 0))
	define(Stvec, "stvec", withWARL(xtvec))
	define(Scounteren, "scounteren", withDefault(ones(32)))
	define(Senvcfg, "senvcfg", withWPRI(senvcfgWPRI))
	define(Sscratch, "sscratch")
	define(Sepc, "sepc", withWARL(xepc))
	define(Scause, "scause", withLegal(scauseLegal...))
	define(Stval, "stval")
	define(Sip, "sip", withWARL(masked(sipMask)), shadowOf(Mip, sipMask, 0))
	define(Satp, "satp", withWARL(warlSatp))
	define(Scontext, "scontext")

	for _, h := range []struct {
		reg  Register
		name string
	}{
		{Hstatus, "hstatus"}, {Hedeleg, "hedeleg"}, {Hideleg, "hideleg"},
		{Hie, "hie"}, {Htimedelta, "htimedelta"}, {Hcounteren, "hcounteren"},
		{Hgeie, "hgeie"}, {Henvcfg, "henvcfg"}, {Htval, "htval"}, {Hip, "hip"},
		{Hvip, "hvip"}, {Htinst, "htinst"}, {Hgatp, "hgatp"},
		{Hcontext, "hcontext"}, {Hgeip, "hgeip"},
		{Vsstatus, "vsstatus"}, {Vsie, "vsie"}, {Vstvec, "vstvec"},
		{Vsscratch, "vsscratch"}, {Vsepc, "vsepc"}, {Vscause, "vscause"},
		{Vstval, "vstval"}, {Vsip, "vsip"}, {Vsatp, "vsatp"},
	} {
		define(h.reg, h.name, stubbed)
	}

	define(Mvendorid, "mvendorid")
	define(Marchid, "marchid")
	define(Mimpid, "mimpid")
	define(Mhartid, "mhartid")
	define(Mconfigptr, "mconfigptr")

	define(Mstatus, "mstatus",
		withWPRI(mstatusWPRI),
		withWARL(always(warlMstatus)),
		withDefault(defaultMstatus()))
	define(Misa, "misa",
		withWARL(always(func(uint64) uint64 { return MisaValue })),
		withDefault(MisaValue))
	define(Medeleg, "medeleg", withWARL(masked(medelegMask)), withDefault(^uint64(0)))
	define(Mideleg, "mideleg", withWARL(masked(midelegMask)), withDefault(^uint64(0)))
	define(Mie, "mie", withWARL(masked(mipMask)))
	define(Mtvec, "mtvec", withWARL(xtvec))
	define(Mcounteren, "mcounteren", withDefault(ones(32)))
	define(Menvcfg, "menvcfg", withWPRI(menvcfgWPRI))
	define(Mseccfg, "mseccfg", withWPRI(mseccfgWPRI))

	define(Mscratch, "mscratch")
	define(Mepc, "mepc", withWARL(xepc))
	define(Mcause, "mcause", withLegal(mcauseLegal...))
	define(Mtval, "mtval")
	define(Mip, "mip", withWARL(masked(mipMask)))
	define(Mtinst, "mtinst")
	define(Mtval2, "mtval2")

	defineRange(Pmpcfg0, Pmpcfg14, 2, "pmpcfg", 0)
	defineRange(Pmpaddr0, Pmpaddr63, 1, "pmpaddr", 0)

	define(Mnscratch, "mnscratch")
	define(Mnepc, "mnepc", withWARL(xepc))
	define(Mncause, "mncause", withWPRI(mncauseWPRI), withDefault(uint64(1)<<31))
	define(Mnstatus, "mnstatus",
		withWPRI(mnstatusWPRI),
		withWARL(always(warlMnstatus)),
		withDefault(warlMnstatus(0)))

	define(Mcycle, "mcycle")
	define(Minstret, "minstret")
	defineRange(Mhpmcounter3, Mhpmcounter31, 1, "mhpmcounter", 3)
	define(Mcountinhibit, "mcountinhibit")
	defineRange(Mhpmevent3, Mhpmevent31, 1, "mhpmevent", 3)

	define(Tselect, "tselect")
	define(Tdata1, "tdata1")
	define(Tdata2, "tdata2")
	define(Tdata3, "tdata3")
	define(Tcontrol, "tcontrol")
	define(Mcontext, "mcontext")
	define(Dcsr, "dcsr")
	define(Dpc, "dpc")
	define(Dscratch0, "dscratch0")
	define(Dscratch1, "dscratch1")
}
