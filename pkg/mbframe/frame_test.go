package mbframe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripSupportedFrames(t *testing.T) {

	frames := []Frame{
		NewReadHoldingRegistersRequest(1, 5, 100, 20),
		NewWriteSingleRegisterRequest(2, 5, 103, 1),
		NewWriteMultipleRegistersRequest(3, 5, 100, []uint16{1, 18, 57920, 1, 253, 450, 0, 0}),
		ReadHoldingRegistersResponse(&Frame{TransactionId: 4, UnitId: 7, FunctionCode: FuncReadHoldingRegisters}, []uint16{0xffff, 0, 42}),
		WriteMultipleRegistersResponse(&Frame{TransactionId: 5, UnitId: 7, FunctionCode: FuncWriteMultipleRegisters}, 140, 20),
	}

	for _, f := range frames {
		t.Run(FunctionName(f.FunctionCode), func(t *testing.T) {
			require := require.New(t)

			raw := Encode(f)
			decoded, err := Decode(raw)
			require.NoError(err)
			require.Equal(f, *decoded, "decode(encode(f)) == f")
			require.Equal(raw, Encode(*decoded), "encode(decode(b)) == b")
		})
	}
}

func TestDecodeWireBytes(t *testing.T) {

	assert := assert.New(t)

	raw := []byte{0x00, 0x2a, 0x00, 0x00, 0x00, 0x06, 0x05, 0x03, 0x00, 0x64, 0x00, 0x14}
	f, err := Decode(raw)
	assert.NoError(err)
	assert.Equal(uint16(42), f.TransactionId)
	assert.Equal(uint16(6), f.Length)
	assert.Equal(uint8(5), f.UnitId)
	assert.Equal(FuncReadHoldingRegisters, f.FunctionCode)

	addr, qty, err := f.ReadRequest()
	assert.NoError(err)
	assert.Equal(uint16(100), addr)
	assert.Equal(uint16(20), qty)
}

func TestDecodeMalformed(t *testing.T) {

	cases := map[string][]byte{
		"empty":            {},
		"short header":     {0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x01},
		"length too large": {0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0x01, 0x03, 0x00, 0x00},
		"length too small": {0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x01, 0x03, 0x00, 0x00},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(raw)
			assert.True(t, errors.Is(err, ErrMalformed), "expected ErrMalformed, got %v", err)
		})
	}
}

func TestDecodeUnknownFunctionCode(t *testing.T) {

	assert := assert.New(t)

	raw := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0x01, 0x2b, 0x0e, 0x01}
	f, err := Decode(raw)
	assert.NoError(err, "unknown codes are still frames")
	assert.False(IsSupported(f.FunctionCode))
	assert.Equal(raw, Encode(*f))
}

func TestWriteMultiplePayload(t *testing.T) {

	assert := assert.New(t)

	values := []uint16{1, 18, 57920, 1, 253, 450}
	f := NewWriteMultipleRegistersRequest(9, 5, 100, values)
	assert.Equal(uint16(len(f.Payload)+2), f.Length)

	addr, got, err := f.WriteMultiple()
	assert.NoError(err)
	assert.Equal(uint16(100), addr)
	assert.Equal(values, got)

	// byte count disagrees with quantity
	f.Payload[4] = 4
	_, _, err = f.WriteMultiple()
	assert.ErrorIs(err, ErrMalformed)
}

func TestResponses(t *testing.T) {

	assert := assert.New(t)

	req := NewWriteSingleRegisterRequest(77, 3, 63, 0)
	resp := WriteSingleRegisterResponse(&req)
	assert.Equal(req.Payload, resp.Payload, "single write response echoes request")
	assert.Equal(req.TransactionId, resp.TransactionId)

	read := NewReadHoldingRegistersRequest(78, 3, 60, 3)
	rresp := ReadHoldingRegistersResponse(&read, []uint16{1, 2, 3})
	assert.Equal(byte(6), rresp.Payload[0])
	values, err := rresp.ReadValues()
	assert.NoError(err)
	assert.Equal([]uint16{1, 2, 3}, values)

	multi := NewWriteMultipleRegistersRequest(79, 3, 60, []uint16{4, 5})
	mresp := WriteMultipleRegistersResponse(&multi, 60, 2)
	addr, qty, err := mresp.WriteMultipleAck()
	assert.NoError(err)
	assert.Equal(uint16(60), addr)
	assert.Equal(uint16(2), qty)
}

func TestSplitStream(t *testing.T) {

	assert := assert.New(t)

	a := Encode(NewReadHoldingRegistersRequest(1, 1, 20, 20))
	b := Encode(NewWriteSingleRegisterRequest(2, 1, 23, 1))

	stream := append(append([]byte{}, a...), b[:5]...)
	frames, rest, err := SplitStream(stream)
	assert.NoError(err)
	assert.Len(frames, 1)
	assert.Equal(a, frames[0])
	assert.Equal(b[:5], rest)

	frames, rest, err = SplitStream(append(rest, b[5:]...))
	assert.NoError(err)
	assert.Len(frames, 1)
	assert.Equal(b, frames[0])
	assert.Empty(rest)

	_, _, err = SplitStream([]byte{0, 1, 0, 0, 0xff, 0xff, 1, 3})
	assert.ErrorIs(err, ErrMalformed)
}
