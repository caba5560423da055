package cache

import (
	"fmt"

	"github.com/sarchlab/simplemem/mem/mem"
)

// A Block is a cache line held by the BlockStore.
type Block struct {
	IsValid bool
	Tag     uint64
	Data    []byte
}

// A BlockStore holds size/blockSize blocks. Each block address maps to
// exactly one slot, selected by the block number modulo the number of slots.
// Filling a slot overwrites whatever the slot held.
type BlockStore struct {
	blockSize uint64
	blocks    []Block
}

// NewBlockStore creates a BlockStore with all the blocks invalid. The size
// must be a positive multiple of the block size.
func NewBlockStore(size, blockSize uint64) (*BlockStore, error) {
	if err := blockStoreSizeMustBeValid(size, blockSize); err != nil {
		return nil, err
	}

	s := &BlockStore{
		blockSize: blockSize,
		blocks:    make([]Block, size/blockSize),
	}

	for i := range s.blocks {
		s.blocks[i].Data = make([]byte, blockSize)
	}

	return s, nil
}

func blockStoreSizeMustBeValid(size, blockSize uint64) error {
	if blockSize == 0 {
		return fmt.Errorf("%w: block size must be positive", mem.ErrInvalidSize)
	}

	if size == 0 || size%blockSize != 0 {
		return fmt.Errorf("%w: size %d is not a positive multiple of block size %d",
			mem.ErrInvalidSize, size, blockSize)
	}

	return nil
}

// BlockSize returns the number of bytes in a block.
func (s *BlockStore) BlockSize() uint64 {
	return s.blockSize
}

// NumBlocks returns the number of slots.
func (s *BlockStore) NumBlocks() int {
	return len(s.blocks)
}

func (s *BlockStore) slot(addr uint64) *Block {
	blockNumber := addr / s.blockSize
	return &s.blocks[blockNumber%uint64(len(s.blocks))]
}

// Lookup returns the block that holds the address, if the block is valid.
func (s *BlockStore) Lookup(addr uint64) (*Block, bool) {
	block := s.slot(addr)
	if !block.IsValid || block.Tag != mem.BlockAlign(addr, s.blockSize) {
		return nil, false
	}

	return block, true
}

// Fill places the block that starts at blockAddr into its slot. The previous
// content of the slot is returned so that the caller can tell if a valid
// block has been evicted.
func (s *BlockStore) Fill(blockAddr uint64, data []byte) (evicted Block) {
	if blockAddr%s.blockSize != 0 {
		panic(fmt.Errorf("%w: fill address 0x%x is not block aligned",
			mem.ErrMisalignedAddress, blockAddr))
	}

	if uint64(len(data)) != s.blockSize {
		panic(fmt.Errorf("%w: fill data has %d bytes, block size is %d",
			mem.ErrInvalidSize, len(data), s.blockSize))
	}

	block := s.slot(blockAddr)
	evicted = Block{
		IsValid: block.IsValid,
		Tag:     block.Tag,
		Data:    append([]byte(nil), block.Data...),
	}

	block.IsValid = true
	block.Tag = blockAddr
	copy(block.Data, data)

	return evicted
}

// Read returns a copy of the bytes in a resident block.
func (b *Block) Read(offset, size uint64) []byte {
	return append([]byte(nil), b.Data[offset:offset+size]...)
}

// Write updates the bytes in a resident block.
func (b *Block) Write(offset uint64, data []byte) {
	copy(b.Data[offset:], data)
}
