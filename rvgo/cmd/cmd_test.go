package cmd

import (
	"bytes"
	"context"
	"debug/elf"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"

	"github.com/ethereum-optimism/rvpriv/rvgo/memory"
	"github.com/ethereum-optimism/rvpriv/rvgo/pvm"
	"github.com/ethereum-optimism/rvpriv/rvgo/riscv"
)

const (
	start = uint64(memory.DefaultStart)

	insnLiA7Exit = 0x05D0_0893 // addi a7, zero, 93
	insnAddiA0   = 0x0015_0513 // addi a0, a0, 1
	insnEcall    = 0x0000_0073
)

func testVM(t *testing.T, program ...uint32) *pvm.Pvm {
	vm := pvm.New(start, 1<<20)
	for i, insn := range program {
		require.NoError(t, vm.State().Memory.Write(start+4*uint64(i), 4, uint64(insn)))
	}
	return vm
}

func TestStepMatcherFlag(t *testing.T) {
	cases := []struct {
		pattern string
		matches []uint64
		misses  []uint64
	}{
		{"never", nil, []uint64{0, 1, 100}},
		{"", nil, []uint64{0, 1}},
		{"always", []uint64{0, 1, 100}, nil},
		{"=42", []uint64{42}, []uint64{0, 41, 43}},
		{"%10", []uint64{0, 10, 1000}, []uint64{1, 9, 11}},
	}
	for _, c := range cases {
		t.Run(c.pattern, func(t *testing.T) {
			var f StepMatcherFlag
			require.NoError(t, f.Set(c.pattern))
			m := f.Matcher()
			for _, step := range c.matches {
				require.True(t, m(step), "step %d", step)
			}
			for _, step := range c.misses {
				require.False(t, m(step), "step %d", step)
			}
		})
	}

	var f StepMatcherFlag
	require.Error(t, f.Set("%0"))
	require.Error(t, f.Set("=abc"))
	require.Error(t, f.Set("sometimes"))
	require.False(t, new(StepMatcherFlag).Matcher()(0))
}

func TestModeFlag(t *testing.T) {
	var f ModeFlag
	require.NoError(t, f.Set("supervisor"))
	require.Equal(t, riscv.Supervisor, f.Mode)
	require.Error(t, f.Set("hypervisor"))
	require.Equal(t, riscv.Supervisor, f.Mode)
}

func TestRunnerExit(t *testing.T) {
	vm := testVM(t, insnAddiA0, insnLiA7Exit, insnEcall)
	r := NewRunner(vm, RunConfig{}, nil, Logger(io.Discard, slog.LevelInfo))
	require.NoError(t, r.Run(context.Background()))
	code, exited := vm.Env().ExitCode()
	require.True(t, exited)
	require.Equal(t, uint64(1), code)
	require.Equal(t, uint64(3), vm.State().Step)
}

func TestRunnerStops(t *testing.T) {
	program := []uint32{insnAddiA0, insnAddiA0, insnAddiA0, insnAddiA0, insnLiA7Exit, insnEcall}
	t.Run("max steps", func(t *testing.T) {
		vm := testVM(t, program...)
		r := NewRunner(vm, RunConfig{MaxSteps: 2}, nil, Logger(io.Discard, slog.LevelInfo))
		require.NoError(t, r.Run(context.Background()))
		require.Equal(t, uint64(2), vm.State().Step)
		require.False(t, vm.Env().HasExited())
	})
	t.Run("stop at", func(t *testing.T) {
		vm := testVM(t, program...)
		r := NewRunner(vm, RunConfig{StopAt: MustStepMatcherFlag("=3").Matcher()}, nil, Logger(io.Discard, slog.LevelInfo))
		require.NoError(t, r.Run(context.Background()))
		require.Equal(t, uint64(3), vm.State().Step)
		require.Equal(t, uint64(3), vm.Machine().Hart.ReadX(riscv.RegA0))
	})
	t.Run("cancelled", func(t *testing.T) {
		vm := testVM(t, program...)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := NewRunner(vm, RunConfig{}, nil, Logger(io.Discard, slog.LevelInfo))
		require.ErrorIs(t, r.Run(ctx), context.Canceled)
	})
}

func TestRunnerSnapshots(t *testing.T) {
	dir := t.TempDir()
	vm := testVM(t, insnAddiA0, insnAddiA0, insnLiA7Exit, insnEcall)
	r := NewRunner(vm, RunConfig{
		SnapshotAt:  MustStepMatcherFlag("=2").Matcher(),
		SnapshotFmt: filepath.Join(dir, "state-%d.json"),
	}, nil, Logger(io.Discard, slog.LevelInfo))
	require.NoError(t, r.Run(context.Background()))

	snapshot, err := jsonutil.LoadJSON[pvm.State](filepath.Join(dir, fmt.Sprintf("state-%d.json", 2)))
	require.NoError(t, err)
	require.Equal(t, uint64(2), snapshot.Step)
	require.Equal(t, start+8, snapshot.Hart.PC)

	resumed, err := pvm.Bind(snapshot)
	require.NoError(t, err)
	require.NoError(t, NewRunner(resumed, RunConfig{}, nil, Logger(io.Discard, slog.LevelInfo)).Run(context.Background()))
	require.Equal(t, vm.State().StateHash(), resumed.State().StateHash())
}

func TestDumpSignature(t *testing.T) {
	vm := testVM(t)
	sigAddr := start + 0x1000
	require.NoError(t, vm.State().Memory.WriteAll(sigAddr, []byte{0xde, 0xad, 0xbe, 0xef}))

	meta := &Metadata{Symbols: []elf.Symbol{
		{Name: signatureBegin, Value: sigAddr},
		{Name: signatureEnd, Value: sigAddr + 4},
	}}
	var buf bytes.Buffer
	require.NoError(t, NewRunner(vm, RunConfig{}, meta, nil).DumpSignature(&buf))
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, buf.Bytes())

	buf.Reset()
	require.NoError(t, NewRunner(vm, RunConfig{}, nil, nil).DumpSignature(&buf))
	require.Zero(t, buf.Len())

	meta.Symbols = meta.Symbols[:1]
	require.Error(t, NewRunner(vm, RunConfig{}, meta, nil).DumpSignature(&buf))
}

func TestLoggingWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &LoggingWriter{Name: "signature", Log: Logger(&buf, slog.LevelInfo)}
	n, err := lw.Write([]byte{0x00, 0xff})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Contains(t, buf.String(), "data=0x00ff")
	_, err = lw.Write([]byte("hello"))
	require.NoError(t, err)
	require.Contains(t, buf.String(), "text=hello")
}
