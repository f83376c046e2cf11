package machine

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"sort"
)

// LoadELF reads the loadable segments of a 64-bit RISC-V executable into a
// Program. Segments are placed at their physical address, with the part
// beyond the file contents zero-filled.
func LoadELF(f *elf.File) (*Program, error) {
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("ELF is not RISC-V, but got %q", f.Machine.String())
	}
	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("ELF is not 64-bit, but got %q", f.Class.String())
	}

	out := &Program{Entry: f.Entry}
	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			// RISC-V reuses the MIPS_ABIFLAGS program type for `.riscv.attributes`,
			// which is not loaded into memory either.
			continue
		}
		if prog.Filesz > prog.Memsz {
			return nil, fmt.Errorf("invalid PT_LOAD program segment %d, file size (%d) > mem size (%d)", i, prog.Filesz, prog.Memsz)
		}
		r := io.MultiReader(
			io.NewSectionReader(prog, 0, int64(prog.Filesz)),
			bytes.NewReader(make([]byte, prog.Memsz-prog.Filesz)),
		)
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read program segment %d: %w", i, err)
		}
		out.Segments = append(out.Segments, Segment{Addr: prog.Paddr, Data: data})
	}
	return out, nil
}

// SortedSymbols is a symbol table ordered by address.
type SortedSymbols []elf.Symbol

// FindSymbol returns the symbol covering addr. Addresses before the first
// symbol or between symbols get the "!start" and "!gap" placeholders.
func (s SortedSymbols) FindSymbol(addr uint64) elf.Symbol {
	i := sort.Search(len(s), func(i int) bool {
		return s[i].Value > addr
	})
	if i == 0 {
		return elf.Symbol{Name: "!start", Value: 0}
	}
	out := &s[i-1]
	if out.Value+out.Size < addr { // addr may be pointing to a gap between symbols
		return elf.Symbol{Name: "!gap", Value: addr}
	}
	return *out
}

// LookupSymbol returns the name of the symbol covering addr.
func (s SortedSymbols) LookupSymbol(addr uint64) string {
	return s.FindSymbol(addr).Name
}

// Symbol looks up a symbol by exact name.
func (s SortedSymbols) Symbol(name string) (elf.Symbol, bool) {
	for _, sym := range s {
		if sym.Name == name {
			return sym, true
		}
	}
	return elf.Symbol{}, false
}

func Symbols(f *elf.File) (SortedSymbols, error) {
	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols data: %w", err)
	}
	// not every ELF has sorted symbols
	out := make(SortedSymbols, len(symbols))
	copy(out, symbols)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value < out[j].Value
	})
	return out, nil
}
