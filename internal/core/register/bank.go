package register

import (
	"errors"
	"fmt"
	"sync"
)

const (
	SLOT_SIZE = 20
)

var ErrOutOfRange = errors.New("register address out of range")

// Bank is the holding register address space shared by every slave. Each
// slave owns SLOT_SIZE consecutive registers starting at slaveId*SLOT_SIZE.
type Bank struct {
	mu        sync.RWMutex
	registers []uint16
	maxSlaves int
}

func NewBank(maxSlaves int) *Bank {
	return &Bank{
		registers: make([]uint16, maxSlaves*SLOT_SIZE),
		maxSlaves: maxSlaves,
	}
}

func (b *Bank) Capacity() int {
	return len(b.registers)
}

func (b *Bank) MaxSlaves() int {
	return b.maxSlaves
}

func (b *Bank) Read(addr uint16, quantity uint16) ([]uint16, error) {
	if err := b.checkRange(int(addr), int(quantity)); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	values := make([]uint16, quantity)
	copy(values, b.registers[addr:int(addr)+int(quantity)])
	return values, nil
}

// Write stores values starting at addr. The whole run is applied under one
// lock so readers never see part of it.
func (b *Bank) Write(addr uint16, values []uint16) error {
	if err := b.checkRange(int(addr), len(values)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.registers[addr:], values)
	return nil
}

// Slot returns a copy of the full slot of slaveId.
func (b *Bank) Slot(slaveId int) ([SLOT_SIZE]uint16, error) {
	var slot [SLOT_SIZE]uint16
	if slaveId < 0 || slaveId >= b.maxSlaves {
		return slot, fmt.Errorf("%w: slave %d, max slaves %d", ErrOutOfRange, slaveId, b.maxSlaves)
	}
	base := SlotBase(slaveId)
	b.mu.RLock()
	defer b.mu.RUnlock()
	copy(slot[:], b.registers[base:base+SLOT_SIZE])
	return slot, nil
}

func (b *Bank) checkRange(addr int, quantity int) error {
	if quantity <= 0 || addr+quantity > len(b.registers) {
		return fmt.Errorf("%w: addr=%d quantity=%d capacity=%d", ErrOutOfRange, addr, quantity, len(b.registers))
	}
	return nil
}

func SlotBase(slaveId int) int {
	return slaveId * SLOT_SIZE
}

// SlotOf returns the slave owning addr.
func SlotOf(addr uint16) int {
	return int(addr) / SLOT_SIZE
}

// Intersects reports whether [addr, addr+quantity) touches the slot of slaveId.
func Intersects(slaveId int, addr uint16, quantity int) bool {
	base := SlotBase(slaveId)
	return int(addr) < base+SLOT_SIZE && int(addr)+quantity > base
}
