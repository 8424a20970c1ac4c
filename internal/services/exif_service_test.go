package services

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawEXIF builds a little-endian TIFF block with an orientation and a
// DateTime tag in IFD0
func rawEXIF(t *testing.T, orientation uint16, dateTime string) []byte {
	t.Helper()
	require.Len(t, dateTime, 19)

	var buf bytes.Buffer
	le := binary.LittleEndian
	write := func(v interface{}) { require.NoError(t, binary.Write(&buf, le, v)) }

	buf.WriteString("II")
	write(uint16(42))
	write(uint32(8))

	// IFD0: two entries, then the next-IFD offset
	write(uint16(2))
	write([]uint16{0x0112, 3})
	write(uint32(1))
	write([]uint16{orientation, 0})
	write([]uint16{0x0132, 2})
	write(uint32(20))
	write(uint32(8 + 2 + 2*12 + 4))
	write(uint32(0))

	buf.WriteString(dateTime)
	buf.WriteByte(0)
	return buf.Bytes()
}

func TestEXIFService_ExtractFromBytes(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	svc := NewEXIFService(seoul)

	t.Run("date and orientation", func(t *testing.T) {
		info := svc.ExtractFromBytes(rawEXIF(t, 6, "2024:05:10 14:30:12"))
		require.NotNil(t, info.DateTaken)
		assert.True(t, info.DateTaken.Equal(time.Date(2024, 5, 10, 14, 30, 12, 0, seoul)))
		assert.Equal(t, seoul, info.DateTaken.Location())
		assert.Equal(t, 6, info.Orientation)
	})

	t.Run("implausible camera clock is ignored", func(t *testing.T) {
		info := svc.ExtractFromBytes(rawEXIF(t, 1, "2000:01:01 00:00:00"))
		assert.Nil(t, info.DateTaken)
	})

	t.Run("images without exif", func(t *testing.T) {
		info := svc.ExtractFromBytes(testPNG(t, 8, 8))
		assert.Nil(t, info.DateTaken)
		assert.Equal(t, 1, info.Orientation)
	})

	t.Run("garbage", func(t *testing.T) {
		info := svc.ExtractFromBytes([]byte("no"))
		assert.Nil(t, info.DateTaken)
	})
}
