package memory

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Note: 2**12 = 4 KiB, the page size of all supported paging schemes.
const (
	PageAddrSize = 12
	PageKeySize  = 64 - PageAddrSize
	PageSize     = 1 << PageAddrSize
	PageAddrMask = PageSize - 1
)

// DefaultStart is where main memory is mapped on the bus.
const DefaultStart = 0x8000_0000

// ErrOutOfBounds is returned for any access that leaves main memory.
var ErrOutOfBounds = errors.New("out of bounds")

// Memory is the physical main memory of the machine: Size bytes mapped at
// Start. Pages are allocated lazily and read as zero until written.
type Memory struct {
	start uint64
	size  uint64

	pages map[uint64]*CachedPage

	// two caches: we often read instructions from one page, and do memory things with another page.
	// this prevents map lookups each instruction
	lastPageKeys [2]uint64
	lastPage     [2]*CachedPage
}

func NewMemory(start, size uint64) *Memory {
	return &Memory{
		start:        start,
		size:         size,
		pages:        make(map[uint64]*CachedPage),
		lastPageKeys: [2]uint64{^uint64(0), ^uint64(0)}, // default to invalid keys, to not match any pages
	}
}

func (m *Memory) Start() uint64 { return m.start }

func (m *Memory) Size() uint64 { return m.size }

// InBounds reports whether [addr, addr+length) is fully inside main memory.
func (m *Memory) InBounds(addr uint64, length uint64) bool {
	if addr < m.start {
		return false
	}
	off := addr - m.start
	return off <= m.size && length <= m.size-off
}

func (m *Memory) checkBounds(addr uint64, length uint64) error {
	if !m.InBounds(addr, length) {
		return fmt.Errorf("access of %d bytes at 0x%x: %w", length, addr, ErrOutOfBounds)
	}
	return nil
}

func (m *Memory) PageCount() int {
	return len(m.pages)
}

func (m *Memory) ForEachPage(fn func(pageIndex uint64, page *Page) error) error {
	for _, pageIndex := range m.sortedKeys() {
		if err := fn(pageIndex, m.pages[pageIndex].Data); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) sortedKeys() []uint64 {
	keys := make([]uint64, 0, len(m.pages))
	for k := range m.pages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (m *Memory) pageLookup(pageIndex uint64) (*CachedPage, bool) {
	// hit caches
	if pageIndex == m.lastPageKeys[0] {
		return m.lastPage[0], true
	}
	if pageIndex == m.lastPageKeys[1] {
		return m.lastPage[1], true
	}
	p, ok := m.pages[pageIndex]

	// only cache existing pages.
	if ok {
		m.lastPageKeys[1] = m.lastPageKeys[0]
		m.lastPage[1] = m.lastPage[0]
		m.lastPageKeys[0] = pageIndex
		m.lastPage[0] = p
	}

	return p, ok
}

func (m *Memory) AllocPage(pageIndex uint64) *CachedPage {
	p := &CachedPage{Data: new(Page)}
	m.pages[pageIndex] = p
	// make sure the cache is not stale
	if m.lastPageKeys[0] == pageIndex {
		m.lastPage[0] = p
	}
	if m.lastPageKeys[1] == pageIndex {
		m.lastPage[1] = p
	}
	return p
}

// Read loads a little-endian value of width 1, 2, 4 or 8 bytes.
func (m *Memory) Read(addr uint64, width int) (uint64, error) {
	if width != 1 && width != 2 && width != 4 && width != 8 {
		return 0, fmt.Errorf("unsupported read width %d", width)
	}
	if err := m.checkBounds(addr, uint64(width)); err != nil {
		return 0, err
	}
	var buf [8]byte
	m.getUnaligned(addr, buf[:width])
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Write stores the low width bytes of v, little-endian.
func (m *Memory) Write(addr uint64, width int, v uint64) error {
	if width != 1 && width != 2 && width != 4 && width != 8 {
		return fmt.Errorf("unsupported write width %d", width)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return m.WriteAll(addr, buf[:width])
}

// WriteAll stores dat at addr. Nothing is written if any byte is out of bounds.
func (m *Memory) WriteAll(addr uint64, dat []byte) error {
	if err := m.checkBounds(addr, uint64(len(dat))); err != nil {
		return err
	}
	for len(dat) > 0 {
		pageIndex := addr >> PageAddrSize
		pageAddr := addr & PageAddrMask
		p, ok := m.pageLookup(pageIndex)
		if !ok {
			// allocate the page if we have not already.
			p = m.AllocPage(pageIndex)
		}
		p.Invalidate()
		n := copy(p.Data[pageAddr:], dat)
		dat = dat[n:]
		addr += uint64(n)
	}
	return nil
}

// ReadAll fills dest from addr.
func (m *Memory) ReadAll(addr uint64, dest []byte) error {
	if err := m.checkBounds(addr, uint64(len(dest))); err != nil {
		return err
	}
	m.getUnaligned(addr, dest)
	return nil
}

func (m *Memory) getUnaligned(addr uint64, dest []byte) {
	for len(dest) > 0 {
		pageIndex := addr >> PageAddrSize
		pageAddr := addr & PageAddrMask
		var n int
		if p, ok := m.pageLookup(pageIndex); ok {
			n = copy(dest, p.Data[pageAddr:])
		} else {
			n = len(dest)
			if rem := int(PageSize - pageAddr); n > rem {
				n = rem
			}
			clear(dest[:n])
		}
		dest = dest[n:]
		addr += uint64(n)
	}
}

// SetMemoryRange copies everything r produces to addr onwards.
func (m *Memory) SetMemoryRange(addr uint64, r io.Reader) error {
	var buf [PageSize]byte
	for {
		n, err := r.Read(buf[:PageSize-(addr&PageAddrMask)])
		if n > 0 {
			if werr := m.WriteAll(addr, buf[:n]); werr != nil {
				return werr
			}
			addr += uint64(n)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

type memReader struct {
	m     *Memory
	addr  uint64
	count uint64
}

func (r *memReader) Read(dest []byte) (n int, err error) {
	if r.count == 0 {
		return 0, io.EOF
	}
	if uint64(len(dest)) > r.count {
		dest = dest[:r.count]
	}
	// stay within one page per read
	if rem := PageSize - (r.addr & PageAddrMask); uint64(len(dest)) > rem {
		dest = dest[:rem]
	}
	r.m.getUnaligned(r.addr, dest)
	r.addr += uint64(len(dest))
	r.count -= uint64(len(dest))
	return len(dest), nil
}

// ReadMemoryRange streams count bytes from addr. Unallocated pages read as zero.
func (m *Memory) ReadMemoryRange(addr uint64, count uint64) io.Reader {
	return &memReader{m: m, addr: addr, count: count}
}

type pageEntry struct {
	Index uint64 `json:"index"`
	Data  *Page  `json:"data"`
}

type memoryJSON struct {
	Start uint64      `json:"start"`
	Size  uint64      `json:"size"`
	Pages []pageEntry `json:"pages"`
}

func (m *Memory) MarshalJSON() ([]byte, error) {
	out := memoryJSON{Start: m.start, Size: m.size, Pages: make([]pageEntry, 0, len(m.pages))}
	for _, k := range m.sortedKeys() {
		out.Pages = append(out.Pages, pageEntry{Index: k, Data: m.pages[k].Data})
	}
	return json.Marshal(out)
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	var in memoryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.start = in.Start
	m.size = in.Size
	m.pages = make(map[uint64]*CachedPage)
	m.lastPageKeys = [2]uint64{^uint64(0), ^uint64(0)}
	m.lastPage = [2]*CachedPage{nil, nil}
	for i, p := range in.Pages {
		if _, ok := m.pages[p.Index]; ok {
			return fmt.Errorf("cannot load duplicate page, entry %d, page index %d", i, p.Index)
		}
		if p.Data == nil {
			return fmt.Errorf("page entry %d has no data", i)
		}
		m.AllocPage(p.Index).Data = p.Data
	}
	return nil
}

// MerkleRoot commits to the full 64-bit address space. Each page is a
// subtree of 32-byte leaves, pages are the leaves of the upper tree.
func (m *Memory) MerkleRoot() common.Hash {
	keys := m.sortedKeys()
	return m.subtreeRoot(keys, PageKeySize)
}

// subtreeRoot computes the root of the subtree of the given height (in page
// key bits) that contains exactly the given sorted keys.
func (m *Memory) subtreeRoot(keys []uint64, height int) common.Hash {
	if len(keys) == 0 {
		return zeroHashes[height+pageTreeDepth]
	}
	if height == 0 {
		return m.pages[keys[0]].MerkleRoot()
	}
	bit := uint64(1) << (height - 1)
	split := sort.Search(len(keys), func(i int) bool { return keys[i]&bit != 0 })
	return HashPair(m.subtreeRoot(keys[:split], height-1), m.subtreeRoot(keys[split:], height-1))
}

func (m *Memory) Usage() string {
	total := uint64(len(m.pages)) * PageSize
	const unit = 1024
	if total < unit {
		return fmt.Sprintf("%d B", total)
	}
	div, exp := uint64(unit), 0
	for n := total / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	// KiB, MiB, GiB, TiB, ...
	return fmt.Sprintf("%.1f %ciB", float64(total)/float64(div), "KMGTPE"[exp])
}

func HashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left[:], right[:])
}
