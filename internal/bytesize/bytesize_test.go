package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	cases := map[ByteSize]string{
		0:               "0 B",
		1:               "1 B",
		1023:            "1023 B",
		1024:            "1.0 KiB",
		1536:            "1.5 KiB",
		4096:            "4.0 KiB",
		1 << 20:         "1.0 MiB",
		10<<20 + 512<<10: "10.5 MiB",
		1 << 30:         "1.0 GiB",
		1 << 40:         "1.0 TiB",
	}
	for in, want := range cases {
		assert.Equal(t, want, in.String(), "size %d", uint64(in))
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "4.0 KiB", Format(4096))
	assert.Equal(t, "?", Format(-1))
}
