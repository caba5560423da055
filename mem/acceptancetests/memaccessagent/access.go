package memaccessagent

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/simplemem/mem/mem"
)

// An Access is a memory access that the agent issues.
type Access struct {
	Kind    mem.AccessKind
	Address uint64
	Size    uint64

	// Data is the data to write. For reads, a non-nil Data is the value
	// that the read is expected to return.
	Data []byte
}

func (a Access) String() string {
	switch a.Kind {
	case mem.AccessKindWrite:
		return fmt.Sprintf("W 0x%x %d 0x%x", a.Address, a.Size, a.Data)
	default:
		return fmt.Sprintf("R 0x%x %d", a.Address, a.Size)
	}
}

// ParseAccess parses an access in the form of "R <addr> <size> [expected]"
// or "W <addr> <size> <value>". Numbers can be decimal or 0x-prefixed hex.
// Values are stored little-endian in size bytes.
func ParseAccess(s string) (Access, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 || len(fields) > 4 {
		return Access{}, fmt.Errorf("access %q: want 3 or 4 fields", s)
	}

	var a Access

	switch strings.ToUpper(fields[0]) {
	case "R":
		a.Kind = mem.AccessKindRead
	case "W":
		a.Kind = mem.AccessKindWrite
	default:
		return Access{}, fmt.Errorf("access %q: %w: %s",
			s, mem.ErrUnsupportedAccessKind, fields[0])
	}

	addr, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return Access{}, fmt.Errorf("access %q: address: %w", s, err)
	}

	size, err := strconv.ParseUint(fields[2], 0, 64)
	if err != nil || size == 0 || size > 8 {
		return Access{}, fmt.Errorf("access %q: %w: size must be 1 to 8",
			s, mem.ErrInvalidSize)
	}

	a.Address = addr
	a.Size = size

	if len(fields) == 4 {
		value, err := strconv.ParseUint(fields[3], 0, 64)
		if err != nil {
			return Access{}, fmt.Errorf("access %q: value: %w", s, err)
		}

		a.Data = valueToBytes(value, size)
	} else if a.Kind == mem.AccessKindWrite {
		return Access{}, fmt.Errorf("access %q: write needs a value", s)
	}

	return a, nil
}

func valueToBytes(value, size uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)

	return buf[:size]
}

// ParseAccesses parses a list of accesses.
func ParseAccesses(lines []string) ([]Access, error) {
	accesses := make([]Access, 0, len(lines))

	for _, l := range lines {
		a, err := ParseAccess(l)
		if err != nil {
			return nil, err
		}

		accesses = append(accesses, a)
	}

	return accesses, nil
}
