package machine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/rvpriv/rvgo/csr"
	"github.com/ethereum-optimism/rvpriv/rvgo/memory"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
	"github.com/ethereum-optimism/rvpriv/rvgo/translation"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

const (
	start = uint64(memory.DefaultStart)

	insnEcall   = 0x0000_0073
	insnEbreak  = 0x0010_0073
	insnMret    = 0x3020_0073
	insnSret    = 0x1020_0073
	insnWfi     = 0x1050_0073
	insnAuipcT0 = 0x0000_0297 // auipc t0, 0
	insnAddiA0  = 0x0015_0513 // addi a0, a0, 1
	insnLbT1T2  = 0x0003_8303 // lb t1, 0(t2)
)

func newTestMachine(t *testing.T) (*Machine, *memory.Memory) {
	mem := memory.NewMemory(start, 1<<20)
	return New(mem, start), mem
}

func writeInsn(t *testing.T, mem *memory.Memory, addr uint64, raw uint32) {
	require.NoError(t, mem.Write(addr, 4, uint64(raw)))
}

func stepEnviron(t *testing.T, m *Machine) traps.EnvironException {
	err := m.Step()
	var env traps.EnvironException
	require.True(t, errors.As(err, &env), "expected environment call, got %v", err)
	return env
}

func TestStep(t *testing.T) {
	m, mem := newTestMachine(t)
	writeInsn(t, mem, start, 0x0000_1297)   // auipc t0, 1
	writeInsn(t, mem, start+4, 0x0082_80E7) // jalr ra, 8(t0)

	require.NoError(t, m.Step())
	require.Equal(t, start+4, m.Hart.PC)
	require.Equal(t, start+0x1000, m.Hart.ReadX(5))

	require.NoError(t, m.Step())
	require.Equal(t, start+0x1008, m.Hart.PC)
	require.Equal(t, start+8, m.Hart.ReadX(riscv.RegRA))
}

func TestEnvCallLeavesPC(t *testing.T) {
	m, mem := newTestMachine(t)
	writeInsn(t, mem, start, insnEcall)

	require.Equal(t, traps.EnvCallFromMMode, stepEnviron(t, m))
	require.Equal(t, start, m.Hart.PC)
	require.Equal(t, riscv.Machine, m.Hart.Mode)
	require.Zero(t, m.Hart.CSRs.Read(csr.Mcause))
}

func TestEnvCallFromUser(t *testing.T) {
	m, mem := newTestMachine(t)
	writeInsn(t, mem, start, insnEcall)
	m.Hart.Mode = riscv.User

	// delegation does not matter, the call is never entered
	require.Equal(t, traps.EnvCallFromUMode, stepEnviron(t, m))
	require.Equal(t, start, m.Hart.PC)
	require.Equal(t, riscv.User, m.Hart.Mode)
}

func TestExceptionStaysInMachineMode(t *testing.T) {
	m, mem := newTestMachine(t)
	writeInsn(t, mem, start, insnEbreak)
	mtvec := start + 0x1000
	m.Hart.CSRs.Write(csr.Mtvec, mtvec)
	m.Hart.CSRs.Write(csr.Medeleg, ^uint64(0))

	require.NoError(t, m.Step())
	require.Equal(t, riscv.Machine, m.Hart.Mode)
	require.Equal(t, mtvec, m.Hart.PC)
	mstatus := m.Hart.CSRs.Read(csr.Mstatus)
	require.Equal(t, riscv.Machine, csr.GetMPP(mstatus))
	require.Equal(t, start, m.Hart.CSRs.Read(csr.Mepc))
	require.Equal(t, uint64(traps.CodeBreakpoint), m.Hart.CSRs.Read(csr.Mcause))
	require.Zero(t, m.Hart.CSRs.Read(csr.Mtval))
}

func TestInterruptVectoredMachineMode(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	base := start + 0x2000
	h.CSRs.Write(csr.Mtvec, base|1)
	// the handler of the external interrupt sits at offset 4*11
	writeInsn(t, mem, base+44, insnAuipcT0)

	h.CSRs.Write(csr.Mie, traps.MachineExternal.Bit()|traps.MachineTimer.Bit())
	mip := traps.SupervisorSoftware.Bit() | traps.MachineExternal.Bit() | traps.SupervisorTimer.Bit()
	h.CSRs.Write(csr.Mip, mip)
	h.CSRs.SetBits(csr.Mideleg, traps.MachineExternal.Bit())
	h.CSRs.SetBits(csr.Mstatus, 1<<csr.MIE)

	require.NoError(t, m.Step())
	require.Equal(t, riscv.Machine, h.Mode)
	require.Equal(t, base+44+4, h.PC)
	require.Equal(t, base+44, h.ReadX(5))
	require.Equal(t, uint64(1)<<63|11, h.CSRs.Read(csr.Mcause))
	require.Equal(t, start, h.CSRs.Read(csr.Mepc))
	require.Equal(t, mip^1<<11, h.CSRs.Read(csr.Mip))
	mstatus := h.CSRs.Read(csr.Mstatus)
	require.False(t, csr.Bit(mstatus, csr.MIE))
	require.True(t, csr.Bit(mstatus, csr.MPIE))
}

func TestUserFetchFaultDelegated(t *testing.T) {
	m, _ := newTestMachine(t)
	h := m.Hart
	stvec := start + 0x3000
	badAddr := uint64(0x1000)
	h.CSRs.Write(csr.Stvec, stvec)
	h.CSRs.Write(csr.Medeleg, 1<<traps.CodeInstructionAccessFault)
	h.Mode = riscv.User
	h.PC = badAddr

	require.NoError(t, m.Step())
	require.Equal(t, riscv.Supervisor, h.Mode)
	require.Equal(t, stvec, h.PC)
	require.Equal(t, riscv.User, csr.GetSPP(h.CSRs.Read(csr.Mstatus)))
	require.Equal(t, badAddr, h.CSRs.Read(csr.Sepc))
	require.Equal(t, uint64(traps.CodeInstructionAccessFault), h.CSRs.Read(csr.Scause))
	require.Equal(t, badAddr, h.CSRs.Read(csr.Stval))
}

func TestTrapUserToSupervisorToMachine(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	stvecBase := start + 0x4000
	mtvec := start + 0x5000
	h.CSRs.Write(csr.Stvec, stvecBase|1)
	h.CSRs.Write(csr.Mtvec, mtvec)
	// supervisor external handler: lb t1, 0(t2) on an unmapped address
	handler := stvecBase + 36
	writeInsn(t, mem, handler, insnLbT1T2)
	h.WriteX(7, 0x333)

	h.CSRs.Write(csr.Medeleg, 0)
	h.CSRs.Write(csr.Mideleg, traps.SupervisorExternal.Bit())
	h.CSRs.Write(csr.Mie, traps.SupervisorExternal.Bit())
	mip := traps.SupervisorExternal.Bit() | traps.SupervisorSoftware.Bit()
	h.CSRs.Write(csr.Mip, mip)
	h.CSRs.SetBits(csr.Mstatus, 1<<csr.SIE)
	h.Mode = riscv.User
	initPC := start + 0x100
	h.PC = initPC

	require.NoError(t, m.Step())
	require.Equal(t, riscv.Machine, h.Mode)
	require.Equal(t, mtvec, h.PC)

	mstatus := h.CSRs.Read(csr.Mstatus)
	require.Equal(t, riscv.Supervisor, csr.GetMPP(mstatus))
	require.Equal(t, riscv.User, csr.GetSPP(mstatus))
	require.Equal(t, initPC, h.CSRs.Read(csr.Sepc))
	require.Equal(t, handler, h.CSRs.Read(csr.Mepc))
	require.Equal(t, uint64(1)<<63|9, h.CSRs.Read(csr.Scause))
	require.Equal(t, uint64(traps.CodeLoadAccessFault), h.CSRs.Read(csr.Mcause))
	require.Equal(t, uint64(0x333), h.CSRs.Read(csr.Mtval))
	require.Zero(t, h.CSRs.Read(csr.Stval))
	require.Equal(t, mip^1<<9, h.CSRs.Read(csr.Mip))
}

func TestPendingInterruptPriority(t *testing.T) {
	m, _ := newTestMachine(t)
	h := m.Hart
	both := traps.MachineTimer.Bit() | traps.SupervisorSoftware.Bit()
	h.CSRs.Write(csr.Mie, both)
	h.CSRs.Write(csr.Mip, both)

	// Machine mode with MIE clear takes nothing
	_, ok := m.PendingInterrupt()
	require.False(t, ok)

	h.Mode = riscv.Supervisor
	h.CSRs.SetBits(csr.Mstatus, 1<<csr.SIE)
	irq, ok := m.PendingInterrupt()
	require.True(t, ok)
	require.Equal(t, traps.MachineTimer, irq)

	h.CSRs.ClearBits(csr.Mip, traps.MachineTimer.Bit())
	irq, ok = m.PendingInterrupt()
	require.True(t, ok)
	require.Equal(t, traps.SupervisorSoftware, irq)

	// supervisor interrupts are masked by SIE only in Supervisor mode
	h.CSRs.ClearBits(csr.Mstatus, 1<<csr.SIE)
	_, ok = m.PendingInterrupt()
	require.False(t, ok)
	h.Mode = riscv.User
	irq, ok = m.PendingInterrupt()
	require.True(t, ok)
	require.Equal(t, traps.SupervisorSoftware, irq)
}

func TestStepMany(t *testing.T) {
	m, mem := newTestMachine(t)
	writeInsn(t, mem, start, insnAddiA0)
	writeInsn(t, mem, start+4, insnAddiA0)
	writeInsn(t, mem, start+8, insnEcall)

	res := m.StepMany(0, nil)
	require.Zero(t, res.Steps)
	require.Nil(t, res.Exception)
	require.Equal(t, start, m.Hart.PC)

	res = m.StepMany(1, nil)
	require.Equal(t, uint64(1), res.Steps)
	require.Nil(t, res.Exception)

	// the ecall counts as a step
	res = m.StepMany(10, nil)
	require.Equal(t, uint64(2), res.Steps)
	require.NotNil(t, res.Exception)
	require.Equal(t, traps.EnvCallFromMMode, *res.Exception)
	require.NoError(t, res.Err)
	require.Equal(t, start+8, m.Hart.PC)
	require.Equal(t, uint64(2), m.Hart.ReadX(riscv.RegA0))
}

func TestStepManyPredicate(t *testing.T) {
	m, mem := newTestMachine(t)
	for i := uint64(0); i < 8; i++ {
		writeInsn(t, mem, start+4*i, insnAddiA0)
	}
	res := m.StepMany(100, func(m *Machine) bool { return m.Hart.ReadX(riscv.RegA0) < 3 })
	require.Equal(t, uint64(3), res.Steps)
	require.Equal(t, start+12, m.Hart.PC)
}

func TestCompressedExecution(t *testing.T) {
	m, mem := newTestMachine(t)
	require.NoError(t, mem.Write(start, 2, 0x4505))   // c.li a0, 1
	writeInsn(t, mem, start+2, 0x00A5_0513)           // addi a0, a0, 10
	require.NoError(t, mem.Write(start+6, 2, 0x0000)) // defined illegal
	m.Hart.CSRs.Write(csr.Mtvec, start+0x100)

	require.NoError(t, m.Step())
	require.Equal(t, start+2, m.Hart.PC)
	require.NoError(t, m.Step())
	require.Equal(t, start+6, m.Hart.PC)
	require.Equal(t, uint64(11), m.Hart.ReadX(riscv.RegA0))

	require.NoError(t, m.Step())
	require.Equal(t, start+0x100, m.Hart.PC)
	require.Equal(t, uint64(traps.CodeIllegalInstruction), m.Hart.CSRs.Read(csr.Mcause))
	require.Equal(t, start+6, m.Hart.CSRs.Read(csr.Mepc))
}

func TestInstructionPageFault(t *testing.T) {
	m, _ := newTestMachine(t)
	h := m.Hart
	root := start + 0x10000
	h.CSRs.Write(csr.Satp, translation.MakeSatp(translation.Sv39, 0, root>>12))
	h.CSRs.Write(csr.Stvec, start+0x200)
	h.Mode = riscv.Supervisor
	h.PC = 0x4000

	require.NoError(t, m.Step())
	require.Equal(t, riscv.Supervisor, h.Mode)
	require.Equal(t, start+0x200, h.PC)
	require.Equal(t, uint64(traps.CodeInstructionPageFault), h.CSRs.Read(csr.Scause))
	require.Equal(t, uint64(0x4000), h.CSRs.Read(csr.Stval))
}

func TestLoadStore(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0x00B5_3023)   // sd a1, 0(a0)
	writeInsn(t, mem, start+4, 0x0005_3603) // ld a2, 0(a0)
	writeInsn(t, mem, start+8, insnLbT1T2)
	data := start + 0x800
	h.WriteX(10, data)
	h.WriteX(11, 0xDEAD_BEEF_0000_0080)
	h.WriteX(7, data)

	require.NoError(t, m.Step())
	require.NoError(t, m.Step())
	require.Equal(t, uint64(0xDEAD_BEEF_0000_0080), h.ReadX(12))
	require.NoError(t, m.Step())
	require.Equal(t, uint64(0xFFFF_FFFF_FFFF_FF80), h.ReadX(6))
}

func TestStoreAccessFault(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0x00B5_3023) // sd a1, 0(a0)
	h.WriteX(10, 0x10)
	h.CSRs.Write(csr.Mtvec, start+0x100)

	require.NoError(t, m.Step())
	require.Equal(t, start+0x100, h.PC)
	require.Equal(t, uint64(traps.CodeStoreAccessFault), h.CSRs.Read(csr.Mcause))
	require.Equal(t, uint64(0x10), h.CSRs.Read(csr.Mtval))
}

func TestMulDivExecution(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0x02B5_0633)   // mul a2, a0, a1
	writeInsn(t, mem, start+4, 0x02B5_1633) // mulh a2, a0, a1
	writeInsn(t, mem, start+8, 0x02B5_4633) // div a2, a0, a1

	h.WriteX(10, ^uint64(0)-2) // -3
	h.WriteX(11, 7)
	require.NoError(t, m.Step())
	require.Equal(t, uint64(0xFFFF_FFFF_FFFF_FFEB), h.ReadX(12)) // -21
	require.NoError(t, m.Step())
	require.Equal(t, ^uint64(0), h.ReadX(12))

	h.WriteX(11, 0)
	require.NoError(t, m.Step())
	require.Equal(t, ^uint64(0), h.ReadX(12))
}

func TestAtomics(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0x1005_32AF)    // lr.d t0, (a0)
	writeInsn(t, mem, start+4, 0x18B5_332F)  // sc.d t1, a1, (a0)
	writeInsn(t, mem, start+8, 0x18B5_332F)  // sc.d t1, a1, (a0)
	writeInsn(t, mem, start+12, 0x00B5_22AF) // amoadd.w t0, a1, (a0)
	writeInsn(t, mem, start+16, 0xC0B5_22AF) // amominu.w t0, a1, (a0)

	data := start + 0x800
	require.NoError(t, mem.Write(data, 8, 0x1234))
	h.WriteX(10, data)
	h.WriteX(11, 0xFFFF_FFFF)

	require.NoError(t, m.Step())
	require.Equal(t, uint64(0x1234), h.ReadX(5))
	require.Equal(t, Reservation{Addr: data, Valid: true}, h.Reservation)

	require.NoError(t, m.Step())
	require.Zero(t, h.ReadX(6))
	v, err := mem.Read(data, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFFF_FFFF), v)
	require.False(t, h.Reservation.Valid)

	// no reservation left
	h.WriteX(11, 5)
	require.NoError(t, m.Step())
	require.Equal(t, uint64(1), h.ReadX(6))
	v, err = mem.Read(data, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFFF_FFFF), v)

	// -1 + 5 on the low word, old value sign-extended into rd
	require.NoError(t, m.Step())
	require.Equal(t, ^uint64(0), h.ReadX(5))
	v, err = mem.Read(data, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), v)

	require.NoError(t, m.Step())
	require.Equal(t, uint64(4), h.ReadX(5))
	v, err = mem.Read(data, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), v)
}

func TestMisalignedAtomic(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0x1005_32AF)   // lr.d t0, (a0)
	writeInsn(t, mem, start+4, 0x00B5_22AF) // amoadd.w t0, a1, (a0)
	h.CSRs.Write(csr.Mtvec, start+4)
	h.WriteX(10, start+0x804)

	require.NoError(t, m.Step())
	require.Equal(t, uint64(traps.CodeLoadAccessFault), h.CSRs.Read(csr.Mcause))
	require.Equal(t, start+0x804, h.CSRs.Read(csr.Mtval))

	h.WriteX(10, start+0x802)
	require.NoError(t, m.Step())
	require.Equal(t, uint64(traps.CodeStoreAccessFault), h.CSRs.Read(csr.Mcause))
	require.Equal(t, start+0x802, h.CSRs.Read(csr.Mtval))
}

func TestCSRInstructions(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0x3000_22F3)    // csrrs t0, mstatus, x0
	writeInsn(t, mem, start+4, 0x3402_D2F3)  // csrrwi t0, mscratch, 5
	writeInsn(t, mem, start+8, 0xF110_22F3)  // csrrs t0, mvendorid, x0
	writeInsn(t, mem, start+12, 0xF112_9073) // csrrw x0, mvendorid, t0
	h.CSRs.Write(csr.Mscratch, 9)
	h.CSRs.Write(csr.Mtvec, start+0x100)

	mstatus := h.CSRs.Read(csr.Mstatus)
	require.NoError(t, m.Step())
	require.Equal(t, mstatus, h.ReadX(5))
	require.Equal(t, mstatus, h.CSRs.Read(csr.Mstatus))

	require.NoError(t, m.Step())
	require.Equal(t, uint64(9), h.ReadX(5))
	require.Equal(t, uint64(5), h.CSRs.Read(csr.Mscratch))

	// reading a read-only register is fine, writing it is not
	require.NoError(t, m.Step())
	require.Equal(t, start+12, h.PC)
	require.NoError(t, m.Step())
	require.Equal(t, start+0x100, h.PC)
	require.Equal(t, uint64(traps.CodeIllegalInstruction), h.CSRs.Read(csr.Mcause))
}

func TestCSRPrivilege(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0x3000_22F3) // csrrs t0, mstatus, x0
	h.CSRs.Write(csr.Medeleg, 0)
	h.CSRs.Write(csr.Mtvec, start+0x100)
	h.Mode = riscv.User

	require.NoError(t, m.Step())
	require.Equal(t, riscv.Machine, h.Mode)
	require.Equal(t, start+0x100, h.PC)
	require.Equal(t, uint64(traps.CodeIllegalInstruction), h.CSRs.Read(csr.Mcause))
	require.Zero(t, h.ReadX(5))
}

func TestSatpTrappedByTVM(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0x1800_22F3) // csrrs t0, satp, x0
	h.CSRs.Write(csr.Medeleg, 0)
	h.CSRs.Write(csr.Mtvec, start+0x100)
	h.CSRs.SetBits(csr.Mstatus, 1<<csr.TVM)
	h.Mode = riscv.Supervisor

	require.NoError(t, m.Step())
	require.Equal(t, uint64(traps.CodeIllegalInstruction), h.CSRs.Read(csr.Mcause))

	h.CSRs.ClearBits(csr.Mstatus, 1<<csr.TVM)
	h.Mode = riscv.Supervisor
	h.PC = start
	require.NoError(t, m.Step())
	require.Equal(t, start+4, h.PC)
}

func TestMret(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, insnMret)
	target := start + 0x400
	h.CSRs.Write(csr.Mepc, target)
	mstatus := h.CSRs.Read(csr.Mstatus)
	mstatus = csr.SetMPP(mstatus, riscv.Supervisor)
	mstatus = csr.SetBit(mstatus, csr.MPIE, true)
	mstatus = csr.SetBit(mstatus, csr.MPRV, true)
	h.CSRs.Write(csr.Mstatus, mstatus)

	require.NoError(t, m.Step())
	require.Equal(t, riscv.Supervisor, h.Mode)
	require.Equal(t, target, h.PC)
	mstatus = h.CSRs.Read(csr.Mstatus)
	require.True(t, csr.Bit(mstatus, csr.MIE))
	require.True(t, csr.Bit(mstatus, csr.MPIE))
	require.False(t, csr.Bit(mstatus, csr.MPRV))
	require.Equal(t, riscv.User, csr.GetMPP(mstatus))
}

func TestSret(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, insnSret)
	target := start + 0x400
	h.CSRs.Write(csr.Sepc, target)
	h.CSRs.Write(csr.Medeleg, 0)
	h.CSRs.Write(csr.Mtvec, start+0x100)
	mstatus := h.CSRs.Read(csr.Mstatus)
	mstatus = csr.SetSPP(mstatus, riscv.User)
	mstatus = csr.SetBit(mstatus, csr.SPIE, true)
	h.CSRs.Write(csr.Mstatus, mstatus)
	h.Mode = riscv.Supervisor

	require.NoError(t, m.Step())
	require.Equal(t, riscv.User, h.Mode)
	require.Equal(t, target, h.PC)
	mstatus = h.CSRs.Read(csr.Mstatus)
	require.True(t, csr.Bit(mstatus, csr.SIE))
	require.True(t, csr.Bit(mstatus, csr.SPIE))

	// sret from User mode is illegal
	h.PC = start
	require.NoError(t, m.Step())
	require.Equal(t, riscv.Machine, h.Mode)
	require.Equal(t, uint64(traps.CodeIllegalInstruction), h.CSRs.Read(csr.Mcause))

	// and so is sret from Supervisor mode with TSR set
	h.CSRs.SetBits(csr.Mstatus, 1<<csr.TSR)
	h.Mode = riscv.Supervisor
	h.PC = start
	require.NoError(t, m.Step())
	require.Equal(t, riscv.Machine, h.Mode)
	require.Equal(t, riscv.Supervisor, csr.GetMPP(h.CSRs.Read(csr.Mstatus)))
}

func TestWfi(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, insnWfi)
	h.CSRs.Write(csr.Medeleg, 0)
	h.CSRs.Write(csr.Mtvec, start+0x100)

	require.NoError(t, m.Step())
	require.Equal(t, start+4, h.PC)

	h.CSRs.SetBits(csr.Mstatus, 1<<csr.TW)
	h.Mode = riscv.Supervisor
	h.PC = start
	require.NoError(t, m.Step())
	require.Equal(t, start+0x100, h.PC)
	require.Equal(t, uint64(traps.CodeIllegalInstruction), h.CSRs.Read(csr.Mcause))
}

func TestFloatMoves(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0xF005_0053)   // fmv.w.x ft0, a0
	writeInsn(t, mem, start+4, 0xE000_05D3) // fmv.x.w a1, ft0
	writeInsn(t, mem, start+8, 0x2010_9153) // fsgnjn.s ft2, ft1, ft1
	h.WriteX(10, 0x8000_0001)
	h.FRegisters[1] = 0x3F80_0000 // not NaN-boxed

	require.NoError(t, m.Step())
	require.Equal(t, uint64(0xFFFF_FFFF_8000_0001), h.FRegisters[0])
	require.Equal(t, csr.ExtDirty, csr.GetFS(h.CSRs.Read(csr.Mstatus)))

	require.NoError(t, m.Step())
	require.Equal(t, uint64(0xFFFF_FFFF_8000_0001), h.ReadX(11))

	require.NoError(t, m.Step())
	require.Equal(t, uint64(0xFFFF_FFFF_FFC0_0000), h.FRegisters[2])
}

func TestFloatDisabled(t *testing.T) {
	m, mem := newTestMachine(t)
	h := m.Hart
	writeInsn(t, mem, start, 0xF005_0053) // fmv.w.x ft0, a0
	h.CSRs.Write(csr.Mtvec, start+0x100)
	h.CSRs.Write(csr.Mstatus, csr.SetFS(h.CSRs.Read(csr.Mstatus), csr.ExtOff))

	require.NoError(t, m.Step())
	require.Equal(t, start+0x100, h.PC)
	require.Equal(t, uint64(traps.CodeIllegalInstruction), h.CSRs.Read(csr.Mcause))
	require.Zero(t, h.FRegisters[0])
}

func TestSetupBoot(t *testing.T) {
	m, mem := newTestMachine(t)
	m.Hart.WriteX(5, 42)
	prog := &Program{
		Entry: start + 0x10,
		Segments: []Segment{
			{Addr: start, Data: []byte{0x13, 0, 0, 0}},
			{Addr: start + 0x1000, Data: make([]byte, 0x20)},
		},
	}
	require.NoError(t, m.SetupBoot(prog, riscv.Supervisor))

	h := m.Hart
	require.Equal(t, prog.Entry, h.PC)
	require.Equal(t, riscv.Supervisor, h.Mode)
	require.Zero(t, h.ReadX(5))
	require.Zero(t, h.ReadX(riscv.RegA0))
	require.Equal(t, start+0x1020, h.ReadX(riscv.RegA1))
	require.NotZero(t, h.CSRs.Read(csr.Medeleg))
	require.NotZero(t, h.CSRs.Read(csr.Mideleg))
	v, err := mem.Read(start, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(0x13), v)
}

func TestSetupBootOutOfBounds(t *testing.T) {
	m, _ := newTestMachine(t)
	prog := &Program{Entry: start, Segments: []Segment{{Addr: 0x100, Data: []byte{1}}}}
	err := m.SetupBoot(prog, riscv.Machine)
	require.ErrorIs(t, err, memory.ErrOutOfBounds)
	var merr *MachineError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, uint64(0x100), merr.Addr)
}
