package mem

import (
	"errors"
	"fmt"

	"github.com/sarchlab/simplemem/sim"
)

var (
	// ErrInvalidSize is returned when a size parameter is not positive or is
	// not a multiple of the block size.
	ErrInvalidSize = errors.New("invalid size")

	// ErrMisalignedAddress is reported when an access spans more than one
	// block.
	ErrMisalignedAddress = errors.New("access spans multiple blocks")

	// ErrUnsupportedAccessKind is reported when a component receives a
	// message that is neither a read nor a write request.
	ErrUnsupportedAccessKind = errors.New("unsupported access kind")

	// ErrInvalidParameter is returned when a component parameter other than
	// a size is out of range, such as a negative latency.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// AccessKind tells whether an access reads or writes.
type AccessKind int

// The kinds of accesses.
const (
	AccessKindRead AccessKind = iota
	AccessKindWrite
)

func (k AccessKind) String() string {
	switch k {
	case AccessKindRead:
		return "read"
	case AccessKindWrite:
		return "write"
	default:
		return fmt.Sprintf("AccessKind(%d)", int(k))
	}
}

// KindOf returns the access kind of a message. A message that is not a
// ReadReq or a WriteReq results in an error wrapping
// ErrUnsupportedAccessKind.
func KindOf(msg sim.Msg) (AccessKind, error) {
	switch msg.(type) {
	case *ReadReq:
		return AccessKindRead, nil
	case *WriteReq:
		return AccessKindWrite, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedAccessKind, msg)
	}
}

// BlockAlign returns the address of the first byte of the block that the
// address belongs to.
func BlockAlign(addr, blockSize uint64) uint64 {
	return addr / blockSize * blockSize
}

// AccessMustFitInBlock returns an error wrapping ErrMisalignedAddress if the
// access [addr, addr+size) crosses a block boundary.
func AccessMustFitInBlock(addr, size, blockSize uint64) error {
	if size == 0 {
		return nil
	}

	if BlockAlign(addr, blockSize) != BlockAlign(addr+size-1, blockSize) {
		return fmt.Errorf("%w: address 0x%x, size %d, block size %d",
			ErrMisalignedAddress, addr, size, blockSize)
	}

	return nil
}

// A FunctionalAccessor can read and write data without spending simulated
// time.
type FunctionalAccessor interface {
	FunctionalRead(addr, size uint64) ([]byte, error)
	FunctionalWrite(addr uint64, data []byte) error
}
