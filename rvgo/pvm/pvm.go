// Package pvm wraps a machine and its execution environment into a
// versioned, serializable virtual machine.
package pvm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethereum-optimism/rvpriv/rvgo/csr"
	"github.com/ethereum-optimism/rvpriv/rvgo/execenv"
	"github.com/ethereum-optimism/rvpriv/rvgo/machine"
	"github.com/ethereum-optimism/rvpriv/rvgo/memory"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

// InitialVersion is the schema version of freshly created states.
const InitialVersion = 0

var (
	ErrUnexpectedVersion = errors.New("unexpected state version")
	ErrIncompleteState   = errors.New("incomplete state")
	// ErrFatalCall is returned when the execution environment cannot
	// service an environment call.
	ErrFatalCall = errors.New("fatal environment call")
	ErrNoInput   = errors.New("input is not requested")
)

// Status of the virtual machine.
type Status uint8

const (
	// StatusEval is normal evaluation.
	StatusEval Status = iota
	// StatusInput is waiting on input.
	StatusInput
)

func (s Status) String() string {
	switch s {
	case StatusEval:
		return "eval"
	case StatusInput:
		return "input"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// State is the serialized form of the virtual machine.
type State struct {
	Version uint64 `json:"version"`
	// Step counts the steps taken since the last reset.
	Step   uint64         `json:"step"`
	Hart   *machine.Hart  `json:"hart"`
	Memory *memory.Memory `json:"memory"`
	Env    *execenv.Posix `json:"env"`
}

// NewState returns a reset state over mem.
func NewState(mem *memory.Memory) *State {
	return &State{
		Version: InitialVersion,
		Hart:    machine.NewHart(mem.Start()),
		Memory:  mem,
		Env:     execenv.NewPosix(),
	}
}

// Pvm is a machine bound to a State.
type Pvm struct {
	state   *State
	machine *machine.Machine
}

// Bind attaches a Pvm to st. Only states of InitialVersion can be bound.
func Bind(st *State) (*Pvm, error) {
	if st.Version != InitialVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedVersion, st.Version)
	}
	if st.Hart == nil || st.Hart.CSRs == nil || st.Memory == nil || st.Env == nil {
		return nil, ErrIncompleteState
	}
	return &Pvm{
		state:   st,
		machine: &machine.Machine{Hart: st.Hart, Bus: st.Memory},
	}, nil
}

// New returns a Pvm over a fresh state of the given memory layout.
func New(memStart, memSize uint64) *Pvm {
	p, err := Bind(NewState(memory.NewMemory(memStart, memSize)))
	if err != nil {
		panic(err) // a fresh state always binds
	}
	return p
}

func (p *Pvm) State() *State { return p.state }

func (p *Pvm) Machine() *machine.Machine { return p.machine }

func (p *Pvm) Env() *execenv.Posix { return p.state.Env }

// Reset clears memory and restores the hart and environment to their
// initial state.
func (p *Pvm) Reset() {
	st := p.state
	st.Version = InitialVersion
	st.Step = 0
	st.Memory = memory.NewMemory(st.Memory.Start(), st.Memory.Size())
	st.Hart.Reset(st.Memory.Start())
	st.Env.Reset()
	p.machine.Bus = st.Memory
}

// Status is always StatusEval: no input channel is modelled.
func (p *Pvm) Status() Status {
	return StatusEval
}

// ProvideInput fails unless the machine is in StatusInput, which it never is.
func (p *Pvm) ProvideInput(level uint64, counter uint64, payload []byte) error {
	if p.Status() != StatusInput {
		return fmt.Errorf("%w: status is %s", ErrNoInput, p.Status())
	}
	return nil
}

// handleException passes the call to the environment. It reports whether
// evaluation may continue.
func (p *Pvm) handleException(exc traps.EnvironException) (bool, error) {
	out := p.state.Env.HandleCall(p.machine, exc)
	if out.Fatal {
		return false, fmt.Errorf("%w: %s at pc 0x%x", ErrFatalCall, exc, p.machine.Hart.PC)
	}
	return out.ContinueEval, nil
}

// Step runs a single step, handling any environment call it raises.
func (p *Pvm) Step() error {
	err := p.machine.Step()
	var exc traps.EnvironException
	if err != nil && !errors.As(err, &exc) {
		return err
	}
	p.state.Step++
	if err != nil {
		_, err = p.handleException(exc)
	}
	return err
}

// StepMany performs at most maxSteps steps and returns how many were done.
// Environment calls are handled as they are raised; the step that raised
// one counts. Evaluation stops early once the environment asks for it.
func (p *Pvm) StepMany(maxSteps uint64) (uint64, error) {
	var total uint64
	for {
		res := p.machine.StepMany(maxSteps, nil)
		total += res.Steps
		p.state.Step += res.Steps
		if res.Err != nil {
			return total, res.Err
		}
		if res.Exception == nil {
			return total, nil
		}
		cont, err := p.handleException(*res.Exception)
		if err != nil || !cont {
			return total, err
		}
		maxSteps -= res.Steps
	}
}

// EncodeWitness serializes everything but the memory contents, which are
// represented by their merkle root.
func (st *State) EncodeWitness() []byte {
	out := make([]byte, 0, 16+32+8*(2+64+len(csr.Registers()))+16)
	out = binary.BigEndian.AppendUint64(out, st.Version)
	out = binary.BigEndian.AppendUint64(out, st.Step)
	memRoot := st.Memory.MerkleRoot()
	out = append(out, memRoot[:]...)

	h := st.Hart
	out = binary.BigEndian.AppendUint64(out, h.PC)
	out = append(out, byte(h.Mode))
	for _, r := range h.XRegisters {
		out = binary.BigEndian.AppendUint64(out, r)
	}
	for _, r := range h.FRegisters {
		out = binary.BigEndian.AppendUint64(out, r)
	}
	out = binary.BigEndian.AppendUint64(out, h.Reservation.Addr)
	out = append(out, boolByte(h.Reservation.Valid))
	for _, reg := range csr.Registers() {
		out = binary.BigEndian.AppendUint16(out, uint16(reg))
		out = binary.BigEndian.AppendUint64(out, h.CSRs.Read(reg))
	}

	out = binary.BigEndian.AppendUint64(out, st.Env.Code)
	out = append(out, st.Env.Exited, byte(st.Env.ExitMode))
	return out
}

// StateHash is the keccak256 hash of the witness encoding.
func (st *State) StateHash() common.Hash {
	return crypto.Keccak256Hash(st.EncodeWitness())
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
