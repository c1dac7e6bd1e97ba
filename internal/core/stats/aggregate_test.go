package stats

import (
	"testing"

	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestAggregateEmpty(t *testing.T) {

	assert := assert.New(t)

	st := Aggregate(nil)

	assert.Equal(0, st.TotalSlaves)
	assert.Equal(0.0, st.TotalPower)
	assert.Equal(0.0, st.AveragePower)
	assert.Empty(st.ByType)
}

func TestAggregate(t *testing.T) {

	assert := assert.New(t)

	st := Aggregate([]domain.Telemetry{
		{SlaveId: 1, DeviceType: domain.DeviceTypeSolar, Power: 100.25, Status: domain.SlaveStatusOnline},
		{SlaveId: 2, DeviceType: domain.DeviceTypeSolar, Power: 200.5, Status: domain.SlaveStatusOnline},
		{SlaveId: 3, DeviceType: domain.DeviceTypeWind, Power: 1500, Status: domain.SlaveStatusOnline},
		{SlaveId: 4, DeviceType: domain.DeviceTypeBMS, Power: 0, Status: domain.SlaveStatusOffline},
	})

	assert.Equal(4, st.TotalSlaves)
	assert.Equal(3, st.OnlineSlaves)
	assert.Equal(1, st.OfflineSlaves)
	assert.InDelta(1800.75, st.TotalPower, 1e-9)
	assert.InDelta(450.19, st.AveragePower, 1e-9)
	assert.Equal(2, st.ByType[domain.DeviceTypeSolar].Count)
	assert.InDelta(300.75, st.ByType[domain.DeviceTypeSolar].TotalPower, 1e-9)
	assert.Equal(1, st.ByType[domain.DeviceTypeWind].Count)
	assert.Equal(1, st.ByType[domain.DeviceTypeBMS].Count)
}

func TestAggregateTotalIsSumOfPower(t *testing.T) {

	assert := assert.New(t)

	var telemetry []domain.Telemetry
	sum := 0.0
	for i := 0; i < 50; i++ {
		p := float64(i*37%1000) + 0.5
		sum += p
		telemetry = append(telemetry, domain.Telemetry{SlaveId: i, DeviceType: domain.DeviceTypeWind, Power: p, Status: domain.SlaveStatusOnline})
	}

	st := Aggregate(telemetry)

	assert.InDelta(sum, st.TotalPower, 0.005)
	assert.InDelta(sum/50, st.AveragePower, 0.005)
}
