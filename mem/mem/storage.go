package mem

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAddressOutOfRange is returned when an access reaches beyond the capacity
// of a storage.
var ErrAddressOutOfRange = errors.New("address out of range")

// A Storage keeps the data of the simulated system.
//
// The storage manages its data in units. Units that are never touched by Read
// or Write are not allocated, so a storage can model a large memory while
// holding only the data that is used. Untouched bytes read as zero.
type Storage struct {
	sync.Mutex
	Capacity uint64
	unitSize uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity
func NewStorage(capacity uint64) *Storage {
	return NewStorageWithUnitSize(capacity, 4*KB)
}

// NewStorageWithUnitSize creates a storage object with the specified capacity
// and allocation unit size.
func NewStorageWithUnitSize(capacity, unitSize uint64) *Storage {
	if unitSize == 0 {
		panic(fmt.Errorf("%w: storage unit size is 0", ErrInvalidSize))
	}

	return &Storage{
		Capacity: capacity,
		unitSize: unitSize,
		data:     make(map[uint64][]byte),
	}
}

func (s *Storage) accessMustBeInRange(address, length uint64) error {
	if address+length > s.Capacity || address+length < address {
		return fmt.Errorf("%w: 0x%x+%d, capacity %d",
			ErrAddressOutOfRange, address, length, s.Capacity)
	}

	return nil
}

func (s *Storage) unit(baseAddr uint64, create bool) []byte {
	unit, ok := s.data[baseAddr]
	if !ok && create {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

// Read returns a copy of length bytes starting at the address.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	if err := s.accessMustBeInRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	currAddr := address
	offset := uint64(0)

	for offset < length {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		n := min(length-offset, s.unitSize-inUnitAddr)

		if unit := s.unit(baseAddr, false); unit != nil {
			copy(res[offset:offset+n], unit[inUnitAddr:inUnitAddr+n])
		}

		offset += n
		currAddr += n
	}

	return res, nil
}

// Write stores the data starting at the address.
func (s *Storage) Write(address uint64, data []byte) error {
	s.Lock()
	defer s.Unlock()

	length := uint64(len(data))
	if err := s.accessMustBeInRange(address, length); err != nil {
		return err
	}

	currAddr := address
	offset := uint64(0)

	for offset < length {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		n := min(length-offset, s.unitSize-inUnitAddr)

		unit := s.unit(baseAddr, true)
		copy(unit[inUnitAddr:inUnitAddr+n], data[offset:offset+n])

		offset += n
		currAddr += n
	}

	return nil
}

// NumAllocatedUnits returns how many units have been touched by writes.
func (s *Storage) NumAllocatedUnits() int {
	s.Lock()
	defer s.Unlock()

	return len(s.data)
}
