package cmd

import (
	"debug/elf"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"

	"github.com/ethereum-optimism/rvpriv/rvgo/machine"
	"github.com/ethereum-optimism/rvpriv/rvgo/pvm"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
)

// Metadata carries ELF details that are not part of the machine state.
type Metadata struct {
	Symbols machine.SortedSymbols `json:"symbols"`
}

func (m *Metadata) LookupSymbol(addr uint64) string {
	return m.Symbols.LookupSymbol(addr)
}

// BootELF loads the program into a fresh VM and prepares the hart to run it.
func BootELF(f *elf.File, cfg BootConfig) (*pvm.Pvm, error) {
	program, err := machine.LoadELF(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load ELF program: %w", err)
	}
	vm := pvm.New(cfg.MemStart, cfg.MemSize)
	if err := vm.Machine().SetupBoot(program, cfg.BootMode); err != nil {
		return nil, fmt.Errorf("failed to boot program: %w", err)
	}
	vm.Env().SetExitMode(cfg.ExitMode)
	return vm, nil
}

func LoadELF(ctx *cli.Context) error {
	elfPath := ctx.Path(LoadELFPathFlag.Name)
	elfProgram, err := elf.Open(elfPath)
	if err != nil {
		return fmt.Errorf("failed to open ELF file %q: %w", elfPath, err)
	}
	defer elfProgram.Close()
	if elfProgram.Machine != elf.EM_RISCV {
		return fmt.Errorf("ELF is not RISC-V, but got %q", elfProgram.Machine.String())
	}
	vm, err := BootELF(elfProgram, bootConfig(ctx))
	if err != nil {
		return fmt.Errorf("failed to load ELF data into VM state: %w", err)
	}
	if metaPath := ctx.Path(LoadELFMetaFlag.Name); metaPath != "" {
		symbols, err := machine.Symbols(elfProgram)
		if err != nil {
			return fmt.Errorf("failed to compute program metadata: %w", err)
		}
		if err := jsonutil.WriteJSON[*Metadata](metaPath, &Metadata{Symbols: symbols}, OutFilePerm); err != nil {
			return fmt.Errorf("failed to output metadata: %w", err)
		}
	}
	return jsonutil.WriteJSON[*pvm.State](ctx.Path(LoadELFOutFlag.Name), vm.State(), OutFilePerm)
}

// BootConfig is the memory layout and privilege setup of a booted program.
type BootConfig struct {
	MemStart uint64
	MemSize  uint64
	BootMode riscv.Mode
	ExitMode riscv.Mode
}

func bootConfig(ctx *cli.Context) BootConfig {
	return BootConfig{
		MemStart: ctx.Uint64(MemStartFlag.Name),
		MemSize:  ctx.Uint64(MemSizeFlag.Name),
		BootMode: modeFlagValue(ctx, BootModeFlag),
		ExitMode: modeFlagValue(ctx, ExitModeFlag),
	}
}

var LoadELFCommand = &cli.Command{
	Name:        "load-elf",
	Usage:       "Load ELF file into rvpriv JSON state",
	Description: "Load a 64-bit RISC-V ELF file into rvpriv JSON state, ready to boot in the given privilege mode",
	Action:      LoadELF,
	Flags: []cli.Flag{
		LoadELFPathFlag,
		LoadELFOutFlag,
		LoadELFMetaFlag,
		MemStartFlag,
		MemSizeFlag,
		BootModeFlag,
		ExitModeFlag,
	},
}
