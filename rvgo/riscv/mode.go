package riscv

import "fmt"

// Mode is the privilege mode of the hart. The numeric values match the
// encoding used in the xPP fields of mstatus.
type Mode uint8

const (
	User       Mode = 0b00
	Supervisor Mode = 0b01
	Machine    Mode = 0b11
)

// ModeFromBits decodes a 2-bit privilege encoding.
// The reserved encoding 0b10 decodes as User.
func ModeFromBits(v uint64) Mode {
	switch v & 0b11 {
	case 0b01:
		return Supervisor
	case 0b11:
		return Machine
	default:
		return User
	}
}

func (m Mode) String() string {
	switch m {
	case User:
		return "user"
	case Supervisor:
		return "supervisor"
	case Machine:
		return "machine"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses a mode name as accepted on the command line.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "user", "u", "U":
		return User, nil
	case "supervisor", "s", "S":
		return Supervisor, nil
	case "machine", "m", "M":
		return Machine, nil
	default:
		return 0, fmt.Errorf("unknown privilege mode %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
