// Package bytesize renders byte counts as human-readable strings using
// binary units (KiB, MiB, ...).
package bytesize

import "fmt"

// ByteSize is a size in bytes.
type ByteSize uint64

const (
	B   ByteSize = 1
	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// String renders the size with the largest unit that keeps the value at or
// above one, with one decimal for non-byte units.
func (s ByteSize) String() string {
	switch {
	case s >= TiB:
		return fmt.Sprintf("%.1f TiB", float64(s)/float64(TiB))
	case s >= GiB:
		return fmt.Sprintf("%.1f GiB", float64(s)/float64(GiB))
	case s >= MiB:
		return fmt.Sprintf("%.1f MiB", float64(s)/float64(MiB))
	case s >= KiB:
		return fmt.Sprintf("%.1f KiB", float64(s)/float64(KiB))
	default:
		return fmt.Sprintf("%d B", uint64(s))
	}
}

// Format renders a signed byte count; negative values (unknown sizes) are
// rendered as "?".
func Format(n int64) string {
	if n < 0 {
		return "?"
	}
	return ByteSize(n).String()
}
