package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/rvpriv/rvgo/memory"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
)

var (
	LoadELFPathFlag = &cli.PathFlag{
		Name:      "path",
		Aliases:   []string{"elf"},
		Usage:     "Path to 64-bit RISC-V ELF file",
		TakesFile: true,
		Required:  true,
	}
	LoadELFOutFlag = &cli.PathFlag{
		Name:     "out",
		Usage:    "Output path to JSON state",
		Value:    "state.json",
		Required: false,
	}
	LoadELFMetaFlag = &cli.PathFlag{
		Name:     "meta",
		Usage:    "Write metadata file, for symbol lookup during program execution. None if empty.",
		Value:    "meta.json",
		Required: false,
	}
	MemStartFlag = &cli.Uint64Flag{
		Name:  "mem.start",
		Usage: "Physical address of the start of memory",
		Value: memory.DefaultStart,
	}
	MemSizeFlag = &cli.Uint64Flag{
		Name:  "mem.size",
		Usage: "Size of physical memory in bytes",
		Value: 1 << 30,
	}
	BootModeFlag = &cli.GenericFlag{
		Name:  "boot-mode",
		Usage: "Privilege mode to start the program in: machine, supervisor or user",
		Value: &ModeFlag{Mode: riscv.Machine},
	}
	ExitModeFlag = &cli.GenericFlag{
		Name:  "exit-mode",
		Usage: "Privilege mode the exit environment call is expected from. Calls from other modes trap into the guest.",
		Value: &ModeFlag{Mode: riscv.Machine},
	}

	RunInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "path of input JSON state.",
		TakesFile: true,
		Value:     "state.json",
	}
	RunOutputFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "path of output JSON state. Not written if empty.",
		TakesFile: true,
		Value:     "out.json",
	}
	RunMetaFlag = &cli.PathFlag{
		Name:     "meta",
		Usage:    "path to metadata file for symbol lookup for enhanced debugging info during execution.",
		Value:    "meta.json",
		Required: false,
	}
	RunStepsFlag = &cli.Uint64Flag{
		Name:  "steps",
		Usage: "maximum number of steps to run, unlimited if 0",
	}
	RunSnapshotFmtFlag = &cli.StringFlag{
		Name:     "snapshot-fmt",
		Usage:    "format for snapshot output file names.",
		Value:    "state-%d.json",
		Required: false,
	}
	RunInfoAtFlag = &cli.GenericFlag{
		Name:     "info-at",
		Usage:    "step pattern to print info at: " + patternHelp,
		Value:    MustStepMatcherFlag("%100000"),
		Required: false,
	}
	RunStopAtFlag = &cli.GenericFlag{
		Name:     "stop-at",
		Usage:    "step pattern to stop at: " + patternHelp,
		Value:    new(StepMatcherFlag),
		Required: false,
	}
	RunSnapshotAtFlag = &cli.GenericFlag{
		Name:     "snapshot-at",
		Usage:    "step pattern to output snapshots at: " + patternHelp,
		Value:    new(StepMatcherFlag),
		Required: false,
	}
	RunPProfCPU = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "enable pprof cpu profiling",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "log level: debug, info, warn or error",
		Value: "info",
	}
)

func logLevel(ctx *cli.Context) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(ctx.String(LogLevelFlag.Name))); err != nil {
		return 0, fmt.Errorf("invalid log level: %w", err)
	}
	return lvl, nil
}

// ModeFlag parses a privilege mode name.
type ModeFlag struct {
	Mode riscv.Mode
}

func (m *ModeFlag) Set(value string) error {
	mode, err := riscv.ParseMode(value)
	if err != nil {
		return err
	}
	m.Mode = mode
	return nil
}

func (m *ModeFlag) String() string {
	return m.Mode.String()
}

func (m *ModeFlag) Clone() any {
	out := *m
	return &out
}

func modeFlagValue(ctx *cli.Context, flag *cli.GenericFlag) riscv.Mode {
	return ctx.Generic(flag.Name).(*ModeFlag).Mode
}

const patternHelp = "'never' (default), 'always', '=123' at exactly step 123, '%123' for every 123 steps"

// StepMatcher reports whether a step number matches a pattern.
type StepMatcher func(step uint64) bool

type StepMatcherFlag struct {
	repr    string
	matcher StepMatcher
}

func MustStepMatcherFlag(pattern string) *StepMatcherFlag {
	out := new(StepMatcherFlag)
	if err := out.Set(pattern); err != nil {
		panic(err)
	}
	return out
}

func (m *StepMatcherFlag) Set(value string) error {
	m.repr = value
	if value == "" || value == "never" {
		m.matcher = func(uint64) bool { return false }
		return nil
	}
	if value == "always" {
		m.matcher = func(uint64) bool { return true }
		return nil
	}
	if strings.HasPrefix(value, "=") {
		when, err := strconv.ParseUint(value[1:], 0, 64)
		if err != nil {
			return fmt.Errorf("failed to parse step number: %w", err)
		}
		m.matcher = func(step uint64) bool { return step == when }
		return nil
	}
	if strings.HasPrefix(value, "%") {
		when, err := strconv.ParseUint(value[1:], 0, 64)
		if err != nil {
			return fmt.Errorf("failed to parse step interval: %w", err)
		}
		if when == 0 {
			return fmt.Errorf("step interval must not be 0")
		}
		m.matcher = func(step uint64) bool { return step%when == 0 }
		return nil
	}
	return fmt.Errorf("unrecognized step matcher: %q", value)
}

func (m *StepMatcherFlag) String() string {
	return m.repr
}

func (m *StepMatcherFlag) Matcher() StepMatcher {
	if m.matcher == nil { // Set is not called for default value
		return func(uint64) bool { return false }
	}
	return m.matcher
}

func (m *StepMatcherFlag) Clone() any {
	var out StepMatcherFlag
	if err := out.Set(m.repr); err != nil {
		panic(fmt.Errorf("invalid repr: %w", err))
	}
	return &out
}

func stepMatcher(ctx *cli.Context, flag *cli.GenericFlag) StepMatcher {
	return ctx.Generic(flag.Name).(*StepMatcherFlag).Matcher()
}
