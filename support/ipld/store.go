package ipld

import (
	"context"
	"sync"

	block "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
	"golang.org/x/xerrors"

	"github.com/EpiK-Protocol/go-epik-vesting/actors/util/adt"
)

// Creates a new, empty IPLD store in memory.
// This store is appropriate for testing and for the simulated chain.
func NewADTStore(ctx context.Context) adt.Store {
	return adt.WrapBlockStore(ctx, NewBlockStoreInMemory())
}

// BlockStoreInMemory is a goroutine safe block store backed by a map.
type BlockStoreInMemory struct {
	lk   sync.RWMutex
	data map[cid.Cid]block.Block
}

var _ ipldcbor.IpldBlockstore = (*BlockStoreInMemory)(nil)

func NewBlockStoreInMemory() *BlockStoreInMemory {
	return &BlockStoreInMemory{data: make(map[cid.Cid]block.Block)}
}

func (mb *BlockStoreInMemory) Get(c cid.Cid) (block.Block, error) {
	mb.lk.RLock()
	defer mb.lk.RUnlock()

	d, ok := mb.data[c]
	if ok {
		return d, nil
	}
	return nil, xerrors.Errorf("not found: %s", c)
}

func (mb *BlockStoreInMemory) Put(b block.Block) error {
	mb.lk.Lock()
	defer mb.lk.Unlock()

	mb.data[b.Cid()] = b
	return nil
}
