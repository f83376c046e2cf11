package riscv

const (
	// SysExit is the syscall number recognised as "exit" by the POSIX environment.
	SysExit = 93
	// SysExitLegacy is the legacy exit number used by bare-metal test programs.
	SysExitLegacy = 0

	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegGP   = 3
	RegTP   = 4
	RegA0   = 10
	RegA1   = 11
	RegA7   = 17

	// PageSize of the paging schemes and of the backing memory.
	PageSize = 1 << 12

	XLen = 64
)
