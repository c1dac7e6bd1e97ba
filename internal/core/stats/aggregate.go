package stats

import (
	"math"

	"github.com/berfenger/gridfleet/internal/core/domain"
)

// Aggregate computes fleet statistics over telemetry. Power figures are
// rounded to two decimals.
func Aggregate(telemetry []domain.Telemetry) domain.Statistics {
	st := domain.Statistics{
		ByType: make(map[domain.DeviceType]domain.TypeStatistics),
	}
	for _, t := range telemetry {
		st.TotalSlaves++
		if t.Status == domain.SlaveStatusOnline {
			st.OnlineSlaves++
		} else {
			st.OfflineSlaves++
		}
		st.TotalPower += t.Power

		byType := st.ByType[t.DeviceType]
		byType.Count++
		byType.TotalPower += t.Power
		st.ByType[t.DeviceType] = byType
	}
	if st.TotalSlaves > 0 {
		st.AveragePower = round2(st.TotalPower / float64(st.TotalSlaves))
	}
	st.TotalPower = round2(st.TotalPower)
	for k, v := range st.ByType {
		v.TotalPower = round2(v.TotalPower)
		st.ByType[k] = v
	}
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
