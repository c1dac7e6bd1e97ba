package mbframe

import (
	"encoding/binary"
	"fmt"
)

// ReadRequest returns the start address and quantity of a 0x03 request.
func (f *Frame) ReadRequest() (uint16, uint16, error) {
	if f.FunctionCode != FuncReadHoldingRegisters {
		return 0, 0, fmt.Errorf("%w: not a read request (%s)", ErrMalformed, FunctionName(f.FunctionCode))
	}
	if len(f.Payload) != 4 {
		return 0, 0, fmt.Errorf("%w: read request payload is %d bytes", ErrMalformed, len(f.Payload))
	}
	return binary.BigEndian.Uint16(f.Payload[0:2]), binary.BigEndian.Uint16(f.Payload[2:4]), nil
}

// WriteSingle returns the address and value of a 0x06 request (or its echo).
func (f *Frame) WriteSingle() (uint16, uint16, error) {
	if f.FunctionCode != FuncWriteSingleRegister {
		return 0, 0, fmt.Errorf("%w: not a single write (%s)", ErrMalformed, FunctionName(f.FunctionCode))
	}
	if len(f.Payload) != 4 {
		return 0, 0, fmt.Errorf("%w: single write payload is %d bytes", ErrMalformed, len(f.Payload))
	}
	return binary.BigEndian.Uint16(f.Payload[0:2]), binary.BigEndian.Uint16(f.Payload[2:4]), nil
}

// WriteMultiple returns the start address and register values of a 0x10 request.
func (f *Frame) WriteMultiple() (uint16, []uint16, error) {
	if f.FunctionCode != FuncWriteMultipleRegisters {
		return 0, nil, fmt.Errorf("%w: not a multiple write (%s)", ErrMalformed, FunctionName(f.FunctionCode))
	}
	if len(f.Payload) < 5 {
		return 0, nil, fmt.Errorf("%w: multiple write payload is %d bytes", ErrMalformed, len(f.Payload))
	}
	addr := binary.BigEndian.Uint16(f.Payload[0:2])
	quantity := binary.BigEndian.Uint16(f.Payload[2:4])
	byteCount := int(f.Payload[4])
	if quantity == 0 || byteCount != int(quantity)*2 || len(f.Payload)-5 != byteCount {
		return 0, nil, fmt.Errorf("%w: quantity %d, byte count %d, %d value bytes", ErrMalformed, quantity, byteCount, len(f.Payload)-5)
	}
	return addr, bytesToRegisters(f.Payload[5:]), nil
}

// WriteMultipleAck returns the start address and quantity echoed by a 0x10 response.
func (f *Frame) WriteMultipleAck() (uint16, uint16, error) {
	if f.FunctionCode != FuncWriteMultipleRegisters || len(f.Payload) != 4 {
		return 0, 0, fmt.Errorf("%w: not a multiple write response", ErrMalformed)
	}
	return binary.BigEndian.Uint16(f.Payload[0:2]), binary.BigEndian.Uint16(f.Payload[2:4]), nil
}

// ReadValues returns the register values carried by a 0x03 response.
func (f *Frame) ReadValues() ([]uint16, error) {
	if f.FunctionCode != FuncReadHoldingRegisters || len(f.Payload) < 1 {
		return nil, fmt.Errorf("%w: not a read response", ErrMalformed)
	}
	byteCount := int(f.Payload[0])
	if byteCount%2 != 0 || len(f.Payload)-1 != byteCount {
		return nil, fmt.Errorf("%w: byte count %d, %d value bytes", ErrMalformed, byteCount, len(f.Payload)-1)
	}
	return bytesToRegisters(f.Payload[1:]), nil
}

func NewReadHoldingRegistersRequest(transactionId uint16, unitId uint8, addr uint16, quantity uint16) Frame {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], quantity)
	return newFrame(transactionId, unitId, FuncReadHoldingRegisters, payload)
}

func NewWriteSingleRegisterRequest(transactionId uint16, unitId uint8, addr uint16, value uint16) Frame {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], value)
	return newFrame(transactionId, unitId, FuncWriteSingleRegister, payload)
}

func NewWriteMultipleRegistersRequest(transactionId uint16, unitId uint8, addr uint16, values []uint16) Frame {
	payload := make([]byte, 5, 5+len(values)*2)
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], uint16(len(values)))
	payload[4] = byte(len(values) * 2)
	payload = append(payload, registersToBytes(values)...)
	return newFrame(transactionId, unitId, FuncWriteMultipleRegisters, payload)
}

// ReadHoldingRegistersResponse answers req with the given register values.
func ReadHoldingRegistersResponse(req *Frame, values []uint16) Frame {
	payload := make([]byte, 1, 1+len(values)*2)
	payload[0] = byte(len(values) * 2)
	payload = append(payload, registersToBytes(values)...)
	return reply(req, payload)
}

// WriteSingleRegisterResponse echoes req.
func WriteSingleRegisterResponse(req *Frame) Frame {
	payload := make([]byte, len(req.Payload))
	copy(payload, req.Payload)
	return reply(req, payload)
}

func WriteMultipleRegistersResponse(req *Frame, addr uint16, quantity uint16) Frame {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], addr)
	binary.BigEndian.PutUint16(payload[2:4], quantity)
	return reply(req, payload)
}

func reply(req *Frame, payload []byte) Frame {
	f := newFrame(req.TransactionId, req.UnitId, req.FunctionCode, payload)
	f.ProtocolId = req.ProtocolId
	return f
}

func bytesToRegisters(b []byte) []uint16 {
	values := make([]uint16, len(b)/2)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(b[i*2 : i*2+2])
	}
	return values
}

func registersToBytes(values []uint16) []byte {
	b := make([]byte, len(values)*2)
	for i, v := range values {
		binary.BigEndian.PutUint16(b[i*2:i*2+2], v)
	}
	return b
}
