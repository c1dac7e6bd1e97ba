package mbclient

import (
	"errors"
	"sync"
)

var ErrTestConnection = errors.New("test connection refused")

// TestSlotWriter records writes in memory. Failures can be injected for the
// next Open or write calls.
type TestSlotWriter struct {
	mu         sync.Mutex
	open       bool
	opens      int
	closes     int
	writes     [][]uint16
	addrs      []uint16
	failOpens  int
	failWrites int
}

func NewTestSlotWriter() *TestSlotWriter {
	return &TestSlotWriter{}
}

func (w *TestSlotWriter) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opens++
	if w.failOpens > 0 {
		w.failOpens--
		return ErrTestConnection
	}
	w.open = true
	return nil
}

func (w *TestSlotWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closes++
	w.open = false
	return nil
}

func (w *TestSlotWriter) WriteRegisters(addr uint16, values []uint16) error {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return ErrTestConnection
	}
	if w.failWrites > 0 {
		w.failWrites--
		w.mu.Unlock()
		return ErrTestConnection
	}
	w.addrs = append(w.addrs, addr)
	w.writes = append(w.writes, append([]uint16(nil), values...))
	w.mu.Unlock()
	return nil
}

func (w *TestSlotWriter) FailNextOpens(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failOpens = n
}

func (w *TestSlotWriter) FailNextWrites(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failWrites = n
}

func (w *TestSlotWriter) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

func (w *TestSlotWriter) LastWrite() (uint16, []uint16) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.writes) == 0 {
		return 0, nil
	}
	return w.addrs[len(w.addrs)-1], w.writes[len(w.writes)-1]
}

func (w *TestSlotWriter) Opens() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opens
}

func (w *TestSlotWriter) Closes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closes
}
