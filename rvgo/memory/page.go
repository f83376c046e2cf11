package memory

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	leafSize      = 32
	pageLeafCount = PageSize / leafSize
	// pageTreeDepth is log2(pageLeafCount)
	pageTreeDepth = 7
)

var zeroHashes = func() [PageKeySize + pageTreeDepth + 1]common.Hash {
	// empty parts of the tree are all zero. Precompute the hash of each full-zero range sub-tree level.
	var out [PageKeySize + pageTreeDepth + 1]common.Hash
	for i := 1; i < len(out); i++ {
		out[i] = HashPair(out[i-1], out[i-1])
	}
	return out
}()

type Page [PageSize]byte

func (p *Page) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(p[:])), nil
}

func (p *Page) UnmarshalText(dat []byte) error {
	b, err := hexutil.Decode(string(dat))
	if err != nil {
		return fmt.Errorf("invalid page data: %w", err)
	}
	if len(b) != PageSize {
		return fmt.Errorf("expected %d bytes of page data, got %d", PageSize, len(b))
	}
	copy(p[:], b)
	return nil
}

// CachedPage keeps the merkle root of a page until the page is written to.
type CachedPage struct {
	Data  *Page
	root  common.Hash
	valid bool
}

func (p *CachedPage) Invalidate() {
	p.valid = false
}

func (p *CachedPage) MerkleRoot() common.Hash {
	if p.valid {
		return p.root
	}
	var level [pageLeafCount]common.Hash
	for i := range level {
		copy(level[i][:], p.Data[i*leafSize:(i+1)*leafSize])
	}
	for n := pageLeafCount; n > 1; n /= 2 {
		for i := 0; i < n/2; i++ {
			level[i] = HashPair(level[2*i], level[2*i+1])
		}
	}
	p.root = level[0]
	p.valid = true
	return p.root
}
