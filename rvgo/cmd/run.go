package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/pkg/profile"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"

	"github.com/ethereum-optimism/rvpriv/rvgo/pvm"
)

var OutFilePerm = os.FileMode(0o755)

// signature symbols of the RISC-V architectural test suite
const (
	signatureBegin = "begin_signature"
	signatureEnd   = "end_signature"
)

// RunConfig controls a Runner.
type RunConfig struct {
	// MaxSteps bounds the number of steps, unlimited if 0.
	MaxSteps    uint64
	InfoAt      StepMatcher
	StopAt      StepMatcher
	SnapshotAt  StepMatcher
	SnapshotFmt string
}

// Runner steps a VM one instruction at a time so that every step can be
// matched against the info, stop and snapshot patterns.
type Runner struct {
	vm   *pvm.Pvm
	cfg  RunConfig
	meta *Metadata
	log  log.Logger
}

func NewRunner(vm *pvm.Pvm, cfg RunConfig, meta *Metadata, l log.Logger) *Runner {
	never := func(uint64) bool { return false }
	if cfg.InfoAt == nil {
		cfg.InfoAt = never
	}
	if cfg.StopAt == nil {
		cfg.StopAt = never
	}
	if cfg.SnapshotAt == nil {
		cfg.SnapshotAt = never
	}
	if meta == nil {
		meta = &Metadata{}
	}
	return &Runner{vm: vm, cfg: cfg, meta: meta, log: l}
}

// Run steps until the program exits, a stop pattern matches, the step
// budget runs out or ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	state := r.vm.State()
	start := time.Now()
	startStep := state.Step

	for !r.vm.Env().HasExited() {
		if state.Step%100 == 0 { // don't do the ctx err check (includes lock) too often
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		step := state.Step
		if r.cfg.MaxSteps != 0 && step-startStep >= r.cfg.MaxSteps {
			break
		}

		if r.cfg.InfoAt(step) {
			delta := time.Since(start)
			r.log.Info("processing",
				"step", step,
				"pc", HexU64(state.Hart.PC),
				"mode", state.Hart.Mode,
				"ips", float64(step-startStep)/(float64(delta)/float64(time.Second)),
				"pages", state.Memory.PageCount(),
				"mem", state.Memory.Usage(),
				"name", r.meta.LookupSymbol(state.Hart.PC),
			)
		}

		if r.cfg.StopAt(step) {
			break
		}

		if r.cfg.SnapshotAt(step) {
			if err := jsonutil.WriteJSON[*pvm.State](fmt.Sprintf(r.cfg.SnapshotFmt, step), state, OutFilePerm); err != nil {
				return fmt.Errorf("failed to write state snapshot: %w", err)
			}
		}

		if _, err := r.vm.StepMany(1); err != nil {
			return fmt.Errorf("failed at step %d (PC: %016x): %w", step, state.Hart.PC, err)
		}
	}

	if code, exited := r.vm.Env().ExitCode(); exited {
		r.log.Info("program exited", "step", state.Step, "code", code)
	}
	return nil
}

// DumpSignature writes the memory between the signature symbols to w.
func (r *Runner) DumpSignature(w io.Writer) error {
	begin, ok := r.meta.Symbols.Symbol(signatureBegin)
	if !ok {
		return nil
	}
	end, ok := r.meta.Symbols.Symbol(signatureEnd)
	if !ok {
		return fmt.Errorf("found %s but no %s symbol", signatureBegin, signatureEnd)
	}
	if end.Value < begin.Value {
		return fmt.Errorf("signature ends at 0x%x before it begins at 0x%x", end.Value, begin.Value)
	}
	dat := make([]byte, end.Value-begin.Value)
	if err := r.vm.State().Memory.ReadAll(begin.Value, dat); err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}
	_, err := w.Write(dat)
	return err
}

func Run(ctx *cli.Context) error {
	if ctx.Bool(RunPProfCPU.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}

	lvl, err := logLevel(ctx)
	if err != nil {
		return err
	}
	l := Logger(os.Stderr, lvl)

	state, err := jsonutil.LoadJSON[pvm.State](ctx.Path(RunInputFlag.Name))
	if err != nil {
		return err
	}
	vm, err := pvm.Bind(state)
	if err != nil {
		return fmt.Errorf("failed to bind VM state: %w", err)
	}

	var meta *Metadata
	if metaPath := ctx.Path(RunMetaFlag.Name); metaPath == "" {
		l.Info("no metadata file specified, defaulting to empty metadata")
		meta = &Metadata{Symbols: nil} // provide empty metadata by default
	} else {
		if m, err := jsonutil.LoadJSON[Metadata](metaPath); errors.Is(err, os.ErrNotExist) {
			l.Warn("metadata file not found, defaulting to empty metadata", "path", metaPath)
			meta = &Metadata{Symbols: nil}
		} else if err != nil {
			return fmt.Errorf("failed to load metadata: %w", err)
		} else {
			meta = m
		}
	}

	runner := NewRunner(vm, RunConfig{
		MaxSteps:    ctx.Uint64(RunStepsFlag.Name),
		InfoAt:      stepMatcher(ctx, RunInfoAtFlag),
		StopAt:      stepMatcher(ctx, RunStopAtFlag),
		SnapshotAt:  stepMatcher(ctx, RunSnapshotAtFlag),
		SnapshotFmt: ctx.String(RunSnapshotFmtFlag.Name),
	}, meta, l)
	if err := runner.Run(ctx.Context); err != nil {
		return err
	}
	if err := runner.DumpSignature(&LoggingWriter{Name: "signature", Log: l}); err != nil {
		return err
	}

	if out := ctx.Path(RunOutputFlag.Name); out != "" {
		if err := jsonutil.WriteJSON[*pvm.State](out, vm.State(), OutFilePerm); err != nil {
			return fmt.Errorf("failed to write state output: %w", err)
		}
	}
	return nil
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Run VM step(s) of a JSON state.",
	Description: "Run VM step(s) of a JSON state until the program exits. See flags to match when to output a snapshot, or to stop early.",
	Action:      Run,
	Flags: []cli.Flag{
		RunInputFlag,
		RunOutputFlag,
		RunMetaFlag,
		RunStepsFlag,
		RunSnapshotAtFlag,
		RunSnapshotFmtFlag,
		RunStopAtFlag,
		RunInfoAtFlag,
		RunPProfCPU,
		LogLevelFlag,
	},
}
