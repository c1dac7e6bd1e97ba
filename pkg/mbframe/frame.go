package mbframe

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Modbus TCP framing constants
const (
	HeaderLength     = 7   // MBAP header: transaction id, protocol id, length, unit id
	MinFrameLength   = 8   // MBAP header + function code
	MaxLengthField   = 254 // unit id + function code + 252 bytes of payload
	ProtocolIdModbus = 0
)

// function codes
const (
	FuncReadHoldingRegisters   uint8 = 0x03
	FuncWriteSingleRegister    uint8 = 0x06
	FuncWriteMultipleRegisters uint8 = 0x10
)

// payload limits of the supported function codes
const (
	MaxReadQuantity  = 125
	MaxWriteQuantity = 123
)

var (
	ErrMalformed           = errors.New("malformed frame")
	ErrUnsupportedFunction = errors.New("unsupported function code")
)

type Frame struct {
	TransactionId uint16
	ProtocolId    uint16
	Length        uint16
	UnitId        uint8
	FunctionCode  uint8
	Payload       []byte
}

func FunctionName(code uint8) string {
	switch code {
	case FuncReadHoldingRegisters:
		return "read_holding_registers"
	case FuncWriteSingleRegister:
		return "write_single_register"
	case FuncWriteMultipleRegisters:
		return "write_multiple_registers"
	default:
		return fmt.Sprintf("unknown(0x%02x)", code)
	}
}

func IsSupported(code uint8) bool {
	switch code {
	case FuncReadHoldingRegisters, FuncWriteSingleRegister, FuncWriteMultipleRegisters:
		return true
	}
	return false
}

// Decode parses a single complete frame. The declared length must match the
// bytes present after the length field exactly.
func Decode(b []byte) (*Frame, error) {
	if len(b) < MinFrameLength {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformed, len(b), MinFrameLength)
	}
	length := binary.BigEndian.Uint16(b[4:6])
	if int(length) != len(b)-6 {
		return nil, fmt.Errorf("%w: length field %d, %d bytes follow", ErrMalformed, length, len(b)-6)
	}
	payload := make([]byte, len(b)-MinFrameLength)
	copy(payload, b[MinFrameLength:])
	return &Frame{
		TransactionId: binary.BigEndian.Uint16(b[0:2]),
		ProtocolId:    binary.BigEndian.Uint16(b[2:4]),
		Length:        length,
		UnitId:        b[6],
		FunctionCode:  b[7],
		Payload:       payload,
	}, nil
}

// Encode serializes f. The length field is always derived from the payload.
func Encode(f Frame) []byte {
	b := make([]byte, MinFrameLength+len(f.Payload))
	binary.BigEndian.PutUint16(b[0:2], f.TransactionId)
	binary.BigEndian.PutUint16(b[2:4], f.ProtocolId)
	binary.BigEndian.PutUint16(b[4:6], uint16(len(f.Payload)+2))
	b[6] = f.UnitId
	b[7] = f.FunctionCode
	copy(b[MinFrameLength:], f.Payload)
	return b
}

func newFrame(transactionId uint16, unitId uint8, functionCode uint8, payload []byte) Frame {
	return Frame{
		TransactionId: transactionId,
		ProtocolId:    ProtocolIdModbus,
		Length:        uint16(len(payload) + 2),
		UnitId:        unitId,
		FunctionCode:  functionCode,
		Payload:       payload,
	}
}
