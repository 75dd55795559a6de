package kernel

import (
	"encoding/binary"
	"sync"
	"unsafe"
)

// poolHeaderSize is the size of the free-list link written into the
// first bytes of every free block. Allocated blocks carry no header;
// the full block belongs to the caller.
const poolHeaderSize = 4

// poolFreeTail terminates the in-place free list.
const poolFreeTail = ^uint32(0)

// Pool is a fixed-block allocator. Allocation pops the free-list head
// and freeing pushes it back, both O(1); there is no coalescing and
// no variable sizing, which is what makes the cost deterministic.
//
// The free list is threaded through the blocks themselves: a free
// block's first four bytes hold the index of the next free block. An
// allocation bitmap alongside catches double frees and foreign
// pointers.
//
// Pool methods take a short internal critical section and may be
// called from interrupt-context callbacks as well as from tasks.
type Pool struct {
	mu        sync.Mutex
	buf       []byte
	blockSize int
	blocks    int
	freeHead  uint32
	inUse     int
	allocated []uint64 // one bit per block, set while handed out
}

// NewPool creates a pool of blocks fixed-size blocks, blockSize bytes
// each. The block size must hold at least the free-list header.
func NewPool(blocks, blockSize int) (*Pool, error) {
	if blocks < 1 || blockSize < poolHeaderSize {
		return nil, ErrInvalidState
	}

	p := &Pool{
		buf:       make([]byte, blocks*blockSize),
		blockSize: blockSize,
		blocks:    blocks,
		allocated: make([]uint64, (blocks+63)/64),
	}

	for i := 0; i < blocks; i++ {
		next := poolFreeTail
		if i+1 < blocks {
			next = uint32(i + 1)
		}
		binary.LittleEndian.PutUint32(p.block(i), next)
	}
	p.freeHead = 0

	return p, nil
}

// Alloc pops the free-list head and returns the block, zeroed. It
// fails with ErrNoMemory when the pool is exhausted.
func (p *Pool) Alloc() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.freeHead == poolFreeTail {
		return nil, ErrNoMemory
	}

	idx := int(p.freeHead)
	b := p.block(idx)
	p.freeHead = binary.LittleEndian.Uint32(b)
	p.allocated[idx/64] |= 1 << (idx % 64)
	p.inUse++

	clear(b)
	return b, nil
}

// Free returns a block to the pool. The block must be one previously
// handed out by Alloc and not already freed; anything else fails with
// ErrInvalidPointer.
func (p *Pool) Free(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(b) != p.blockSize || len(p.buf) == 0 {
		return ErrInvalidPointer
	}

	base := uintptr(unsafe.Pointer(&p.buf[0]))
	addr := uintptr(unsafe.Pointer(&b[0]))
	if addr < base || addr >= base+uintptr(len(p.buf)) {
		return ErrInvalidPointer
	}

	off := int(addr - base)
	if off%p.blockSize != 0 {
		return ErrInvalidPointer
	}

	idx := off / p.blockSize
	if p.allocated[idx/64]&(1<<(idx%64)) == 0 {
		return ErrInvalidPointer // double free
	}

	p.allocated[idx/64] &^= 1 << (idx % 64)
	binary.LittleEndian.PutUint32(p.block(idx), p.freeHead)
	p.freeHead = uint32(idx)
	p.inUse--

	return nil
}

// InUse returns the number of blocks currently handed out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Capacity returns the total number of blocks.
func (p *Pool) Capacity() int { return p.blocks }

// BlockSize returns the size of each block in bytes.
func (p *Pool) BlockSize() int { return p.blockSize }

// Footprint returns the pool's total RAM in bytes: the block storage
// plus bitmap and control bookkeeping.
func (p *Pool) Footprint() int {
	return len(p.buf) + len(p.allocated)*8 + int(unsafe.Sizeof(Pool{}))
}

func (p *Pool) block(i int) []byte {
	return p.buf[i*p.blockSize : (i+1)*p.blockSize : (i+1)*p.blockSize]
}
