package machine

import (
	"github.com/ethereum-optimism/rvpriv/rvgo/isa"
	"github.com/ethereum-optimism/rvpriv/rvgo/translation"
	"github.com/ethereum-optimism/rvpriv/rvgo/traps"
)

func amoWidth(op isa.Op) int {
	if op >= isa.LrW && op <= isa.AmomaxuW {
		return 4
	}
	return 8
}

func (m *Machine) runLR(instr isa.Instr, width int) (pcUpdate, error) {
	h := m.Hart
	addr := h.ReadX(instr.Rs1)
	if addr%uint64(width) != 0 {
		return pcUpdate{}, traps.LoadAccessFault(addr)
	}
	v, err := m.load(addr, width)
	if err != nil {
		return pcUpdate{}, err
	}
	if width == 4 {
		v = signExtend32(v)
	}
	h.Reservation = Reservation{Addr: addr, Valid: true}
	h.WriteX(instr.Rd, v)
	return pcAdd(), nil
}

// runSC stores only if the reservation covers addr. The reservation is
// released either way.
func (m *Machine) runSC(instr isa.Instr, width int) (pcUpdate, error) {
	h := m.Hart
	addr := h.ReadX(instr.Rs1)
	if addr%uint64(width) != 0 {
		return pcUpdate{}, traps.StoreAccessFault(addr)
	}
	res := h.Reservation
	h.Reservation = Reservation{}
	if !res.Valid || res.Addr != addr {
		h.WriteX(instr.Rd, 1)
		return pcAdd(), nil
	}
	if err := m.store(addr, width, h.ReadX(instr.Rs2)); err != nil {
		return pcUpdate{}, err
	}
	h.WriteX(instr.Rd, 0)
	return pcAdd(), nil
}

// runAMO performs a read-modify-write. W forms see both operands
// sign-extended from 32 bits and store the low word of the result.
func (m *Machine) runAMO(instr isa.Instr, f func(old, src uint64) uint64) (pcUpdate, error) {
	h := m.Hart
	width := amoWidth(instr.Op)
	addr := h.ReadX(instr.Rs1)
	if addr%uint64(width) != 0 {
		return pcUpdate{}, traps.StoreAccessFault(addr)
	}
	pa, err := m.translate(addr, translation.Store)
	if err != nil {
		return pcUpdate{}, err
	}
	old, err := m.Bus.Read(pa, width)
	if err != nil {
		return pcUpdate{}, traps.StoreAccessFault(addr)
	}
	src := h.ReadX(instr.Rs2)
	if width == 4 {
		old, src = signExtend32(old), signExtend32(src)
	}
	if err := m.writePhys(pa, width, f(old, src)); err != nil {
		return pcUpdate{}, traps.StoreAccessFault(addr)
	}
	h.WriteX(instr.Rd, old)
	return pcAdd(), nil
}
