package mem

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// For capacity
const (
	KB uint64 = 1 << (10 * (iota + 1))
	MB
	GB
	TB
)

// ParseSize converts a size string such as "16kB", "64", or "4GB" to a
// number of bytes. Decimal-looking units are treated as powers of 1024, so
// "16kB" is 16384 bytes.
func ParseSize(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty size", ErrInvalidSize)
	}

	n, err := humanize.ParseBytes(toBinaryUnit(trimmed))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSize, s, err)
	}

	return n, nil
}

func toBinaryUnit(s string) string {
	lower := strings.ToLower(s)
	if !strings.HasSuffix(lower, "b") || strings.HasSuffix(lower, "ib") {
		return s
	}

	unitPos := len(s) - 2
	if unitPos < 1 {
		return s
	}

	switch lower[unitPos] {
	case 'k', 'm', 'g', 't', 'p', 'e':
		return s[:unitPos+1] + "iB"
	default:
		return s
	}
}

// HumanSize formats a number of bytes with binary units, for example
// "16 KiB".
func HumanSize(n uint64) string {
	return humanize.IBytes(n)
}
