package mbframe

import (
	"encoding/binary"
	"fmt"
)

// SplitStream cuts complete frames out of buf using the MBAP length field.
// Trailing bytes of an incomplete frame are returned as rest and must be
// prepended to the next read. A length field beyond the protocol maximum
// means the stream lost sync; the caller should drop its buffer.
func SplitStream(buf []byte) (frames [][]byte, rest []byte, err error) {
	for len(buf) >= 6 {
		length := int(binary.BigEndian.Uint16(buf[4:6]))
		if length > MaxLengthField {
			return frames, nil, fmt.Errorf("%w: length field %d exceeds %d", ErrMalformed, length, MaxLengthField)
		}
		total := 6 + length
		if len(buf) < total {
			break
		}
		frame := make([]byte, total)
		copy(frame, buf[:total])
		frames = append(frames, frame)
		buf = buf[total:]
	}
	if len(buf) > 0 {
		rest = make([]byte, len(buf))
		copy(rest, buf)
	}
	return frames, rest, nil
}
