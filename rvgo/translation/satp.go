package translation

import (
	"fmt"
	"strings"
)

// SatpMode is the translation scheme selected by satp.MODE.
type SatpMode uint8

const (
	Bare SatpMode = 0
	Sv39 SatpMode = 8
	Sv48 SatpMode = 9
	Sv57 SatpMode = 10
)

const (
	satpModeShift = 60
	satpASIDShift = 44
	satpASIDMask  = uint64(1)<<16 - 1
	satpPPNMask   = uint64(1)<<44 - 1
)

// GetSatpMode extracts satp.MODE. ok is false for encodings no scheme is
// defined for.
func GetSatpMode(satp uint64) (SatpMode, bool) {
	m := SatpMode(satp >> satpModeShift)
	switch m {
	case Bare, Sv39, Sv48, Sv57:
		return m, true
	}
	return Bare, false
}

// SatpASID returns satp bits 59:44.
func SatpASID(satp uint64) uint64 {
	return (satp >> satpASIDShift) & satpASIDMask
}

// SatpPPN returns the root page table page number, satp bits 43:0.
func SatpPPN(satp uint64) uint64 {
	return satp & satpPPNMask
}

// MakeSatp builds a satp value.
func MakeSatp(mode SatpMode, asid uint64, ppn uint64) uint64 {
	return uint64(mode)<<satpModeShift | (asid&satpASIDMask)<<satpASIDShift | ppn&satpPPNMask
}

// Levels is the depth of the page table walk. Bare has none.
func (m SatpMode) Levels() int {
	switch m {
	case Sv39:
		return 3
	case Sv48:
		return 4
	case Sv57:
		return 5
	}
	return 0
}

// PTESize is 8 bytes for every supported scheme.
func (m SatpMode) PTESize() uint64 { return 8 }

func (m SatpMode) String() string {
	switch m {
	case Bare:
		return "bare"
	case Sv39:
		return "sv39"
	case Sv48:
		return "sv48"
	case Sv57:
		return "sv57"
	}
	return fmt.Sprintf("satp-mode(%d)", uint8(m))
}

func ParseSatpMode(s string) (SatpMode, error) {
	switch strings.ToLower(s) {
	case "bare":
		return Bare, nil
	case "sv39":
		return Sv39, nil
	case "sv48":
		return Sv48, nil
	case "sv57":
		return Sv57, nil
	}
	return Bare, fmt.Errorf("unknown translation mode %q", s)
}

func (m SatpMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *SatpMode) UnmarshalText(text []byte) error {
	v, err := ParseSatpMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
