package telemetry

import (
	"sort"
	"time"

	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/core/register"
)

// Projector keeps the telemetry record of every slave ever seen. It is not
// safe for concurrent use; the fleet actor is its only caller.
type Projector struct {
	bank      *register.Bank
	telemetry map[int]*domain.Telemetry
	now       func() time.Time
}

func NewProjector(bank *register.Bank) *Projector {
	return &Projector{
		bank:      bank,
		telemetry: make(map[int]*domain.Telemetry),
		now:       time.Now,
	}
}

// Project refreshes the record of slaveId after a write of length registers at
// addr. It returns false when the write does not touch the slave's slot.
// The whole slot is re-read so partial writes still yield a full record.
func (p *Projector) Project(slaveId int, addr uint16, length int) (*domain.Telemetry, bool, error) {
	if !register.Intersects(slaveId, addr, length) {
		return nil, false, nil
	}
	slot, err := p.bank.Slot(slaveId)
	if err != nil {
		return nil, false, err
	}
	t := DecodeSlot(slaveId, slot, p.now())
	p.telemetry[slaveId] = &t
	result := t
	return &result, true, nil
}

// SetPower overrides the status of a known slave. Disabling zeroes the
// power; enabling restores the power resident in the slave's slot.
func (p *Projector) SetPower(slaveId int, enable bool) (*domain.Telemetry, bool) {
	t, ok := p.telemetry[slaveId]
	if !ok {
		return nil, false
	}
	if enable {
		t.Status = domain.SlaveStatusOnline
		if slot, err := p.bank.Slot(slaveId); err == nil {
			t.Power = decodePower(slot)
		}
	} else {
		t.Status = domain.SlaveStatusOffline
		t.Power = 0
	}
	t.LastUpdate = p.now()
	result := *t
	return &result, true
}

func (p *Projector) Get(slaveId int) (domain.Telemetry, bool) {
	t, ok := p.telemetry[slaveId]
	if !ok {
		return domain.Telemetry{}, false
	}
	return *t, true
}

func (p *Projector) Known() int {
	return len(p.telemetry)
}

// All returns a copy of every record ordered by slave id.
func (p *Projector) All() []domain.Telemetry {
	all := make([]domain.Telemetry, 0, len(p.telemetry))
	for _, t := range p.telemetry {
		all = append(all, *t)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].SlaveId < all[j].SlaveId
	})
	return all
}
