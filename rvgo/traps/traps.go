package traps

import (
	"fmt"

	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
)

const interruptBit = uint64(1) << 63

// TrapCause is anything that can be delivered through trap entry.
type TrapCause interface {
	// ExceptionCode is the cause number without the interrupt bit.
	ExceptionCode() uint64
	// XCause is the value written to mcause / scause.
	XCause() uint64
	// XTval is the value written to mtval / stval.
	XTval() uint64
	// TrapHandlerAddress computes the handler address given the xtvec value.
	TrapHandlerAddress(xtvec uint64) uint64
	IsInterrupt() bool
}

// ExceptionCode identifies a synchronous exception.
type ExceptionCode uint64

const (
	CodeInstructionAccessFault ExceptionCode = 1
	CodeIllegalInstruction     ExceptionCode = 2
	CodeBreakpoint             ExceptionCode = 3
	CodeLoadAccessFault        ExceptionCode = 5
	CodeStoreAccessFault       ExceptionCode = 7
	CodeEnvCallFromUMode       ExceptionCode = 8
	CodeEnvCallFromSMode       ExceptionCode = 9
	CodeEnvCallFromMMode       ExceptionCode = 11
	CodeInstructionPageFault   ExceptionCode = 12
	CodeLoadPageFault          ExceptionCode = 13
	CodeStoreAMOPageFault      ExceptionCode = 15
)

var exceptionNames = map[ExceptionCode]string{
	CodeInstructionAccessFault: "instruction access fault",
	CodeIllegalInstruction:     "illegal instruction",
	CodeBreakpoint:             "breakpoint",
	CodeLoadAccessFault:        "load access fault",
	CodeStoreAccessFault:       "store access fault",
	CodeEnvCallFromUMode:       "environment call from U-mode",
	CodeEnvCallFromSMode:       "environment call from S-mode",
	CodeEnvCallFromMMode:       "environment call from M-mode",
	CodeInstructionPageFault:   "instruction page fault",
	CodeLoadPageFault:          "load page fault",
	CodeStoreAMOPageFault:      "store/AMO page fault",
}

func (c ExceptionCode) String() string {
	if n, ok := exceptionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("exception(%d)", uint64(c))
}

// Exception is a synchronous trap cause. Addr is only meaningful for
// access and page faults.
type Exception struct {
	Code ExceptionCode
	Addr uint64
}

var (
	IllegalInstruction = Exception{Code: CodeIllegalInstruction}
	Breakpoint         = Exception{Code: CodeBreakpoint}
)

func InstructionAccessFault(addr uint64) Exception {
	return Exception{Code: CodeInstructionAccessFault, Addr: addr}
}

func LoadAccessFault(addr uint64) Exception {
	return Exception{Code: CodeLoadAccessFault, Addr: addr}
}

func StoreAccessFault(addr uint64) Exception {
	return Exception{Code: CodeStoreAccessFault, Addr: addr}
}

func InstructionPageFault(addr uint64) Exception {
	return Exception{Code: CodeInstructionPageFault, Addr: addr}
}

func LoadPageFault(addr uint64) Exception {
	return Exception{Code: CodeLoadPageFault, Addr: addr}
}

func StoreAMOPageFault(addr uint64) Exception {
	return Exception{Code: CodeStoreAMOPageFault, Addr: addr}
}

// EnvCall is the exception raised by ECALL in the given mode.
func EnvCall(mode riscv.Mode) Exception {
	switch mode {
	case riscv.User:
		return Exception{Code: CodeEnvCallFromUMode}
	case riscv.Supervisor:
		return Exception{Code: CodeEnvCallFromSMode}
	default:
		return Exception{Code: CodeEnvCallFromMMode}
	}
}

func (e Exception) hasAddr() bool {
	switch e.Code {
	case CodeInstructionAccessFault, CodeLoadAccessFault, CodeStoreAccessFault,
		CodeInstructionPageFault, CodeLoadPageFault, CodeStoreAMOPageFault:
		return true
	}
	return false
}

func (e Exception) ExceptionCode() uint64 { return uint64(e.Code) }

func (e Exception) XCause() uint64 { return uint64(e.Code) }

func (e Exception) XTval() uint64 {
	if e.hasAddr() {
		return e.Addr
	}
	return 0
}

// TrapHandlerAddress ignores the vectored mode bit: exceptions always go to the base.
func (e Exception) TrapHandlerAddress(xtvec uint64) uint64 {
	return xtvec &^ 0b11
}

func (e Exception) IsInterrupt() bool { return false }

func (e Exception) Error() string {
	if e.hasAddr() {
		return fmt.Sprintf("%s at 0x%x", e.Code, e.Addr)
	}
	return e.Code.String()
}

// Environ classifies the exception as an EnvironException, if it is one.
func (e Exception) Environ() (EnvironException, bool) {
	switch e.Code {
	case CodeEnvCallFromUMode:
		return EnvCallFromUMode, true
	case CodeEnvCallFromSMode:
		return EnvCallFromSMode, true
	case CodeEnvCallFromMMode:
		return EnvCallFromMMode, true
	}
	return 0, false
}

// EnvironException is the subset of exceptions that leave the interpreter
// and are handled by the execution environment.
type EnvironException uint8

const (
	EnvCallFromUMode EnvironException = iota + 1
	EnvCallFromSMode
	EnvCallFromMMode
)

// Exception converts back to the general exception.
func (e EnvironException) Exception() Exception {
	return EnvCall(e.SourceMode())
}

// SourceMode is the privilege mode the ecall was issued from.
func (e EnvironException) SourceMode() riscv.Mode {
	switch e {
	case EnvCallFromUMode:
		return riscv.User
	case EnvCallFromSMode:
		return riscv.Supervisor
	default:
		return riscv.Machine
	}
}

func (e EnvironException) Error() string {
	return e.Exception().Error()
}

func (e EnvironException) String() string {
	switch e {
	case EnvCallFromUMode:
		return "EnvCallFromUMode"
	case EnvCallFromSMode:
		return "EnvCallFromSMode"
	case EnvCallFromMMode:
		return "EnvCallFromMMode"
	default:
		return fmt.Sprintf("EnvironException(%d)", uint8(e))
	}
}

// Interrupt is an asynchronous trap cause. The value is the interrupt code.
type Interrupt uint64

const (
	SupervisorSoftware Interrupt = 1
	MachineSoftware    Interrupt = 3
	SupervisorTimer    Interrupt = 5
	MachineTimer       Interrupt = 7
	SupervisorExternal Interrupt = 9
	MachineExternal    Interrupt = 11
)

// InterruptPriority lists interrupts from highest to lowest priority.
var InterruptPriority = [...]Interrupt{
	MachineExternal,
	MachineSoftware,
	MachineTimer,
	SupervisorExternal,
	SupervisorSoftware,
	SupervisorTimer,
}

const (
	// SupervisorInterruptMask covers SSI, STI and SEI in mip / mie.
	SupervisorInterruptMask = uint64(1)<<SupervisorSoftware | uint64(1)<<SupervisorTimer | uint64(1)<<SupervisorExternal
	// MachineInterruptMask covers MSI, MTI and MEI in mip / mie.
	MachineInterruptMask = uint64(1)<<MachineSoftware | uint64(1)<<MachineTimer | uint64(1)<<MachineExternal
)

// Bit is the interrupt's pending / enable bit in mip and mie.
func (i Interrupt) Bit() uint64 { return uint64(1) << uint64(i) }

func (i Interrupt) ExceptionCode() uint64 { return uint64(i) }

func (i Interrupt) XCause() uint64 { return interruptBit | uint64(i) }

func (i Interrupt) XTval() uint64 { return 0 }

// TrapHandlerAddress honours Vectored mode (xtvec[1:0] == 1).
func (i Interrupt) TrapHandlerAddress(xtvec uint64) uint64 {
	base := xtvec &^ 0b11
	if xtvec&0b11 == 1 {
		return base + 4*uint64(i)
	}
	return base
}

func (i Interrupt) IsInterrupt() bool { return true }

func (i Interrupt) String() string {
	switch i {
	case SupervisorSoftware:
		return "supervisor software interrupt"
	case MachineSoftware:
		return "machine software interrupt"
	case SupervisorTimer:
		return "supervisor timer interrupt"
	case MachineTimer:
		return "machine timer interrupt"
	case SupervisorExternal:
		return "supervisor external interrupt"
	case MachineExternal:
		return "machine external interrupt"
	default:
		return fmt.Sprintf("interrupt(%d)", uint64(i))
	}
}

var (
	_ TrapCause = Exception{}
	_ TrapCause = Interrupt(0)
	_ error     = Exception{}
	_ error     = EnvironException(0)
)
