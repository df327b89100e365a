package datasource

import (
	"sort"
	"time"

	"carbonseed.io/console/pkg/api"
)

// DefaultFreshness is how recently a device must have reported to count
// as online.
const DefaultFreshness = 300000 * time.Millisecond

// Vibration thresholds on the largest axis, mm/s.
const (
	VibrationModerateAbove = 5.0
	VibrationCriticalAbove = 10.0
)

// Metric card thresholds.
const (
	TemperatureCriticalAbove = 900.0
	GasWarningAbove          = 400.0
	UptimeWarningBelow       = 80.0
)

// OnlineFunc decides whether a device is online. It is evaluated on every
// render and never stored.
type OnlineFunc func(api.Device) bool

// ByFlag trusts the backend's is_active flag.
func ByFlag(d api.Device) bool {
	return d.IsActive
}

// BySeen compares last_seen against now.
func BySeen(now time.Time, threshold time.Duration) OnlineFunc {
	return func(d api.Device) bool {
		return d.LastSeen != nil && now.Sub(d.LastSeen.Time) < threshold
	}
}

// OnlineCount counts the devices online reports as online.
func OnlineCount(devices []api.Device, online OnlineFunc) int {
	n := 0
	for _, d := range devices {
		if online(d) {
			n++
		}
	}
	return n
}

// FactoryDeviceCount prefers the server supplied count and recomputes it
// when absent or zero.
func FactoryDeviceCount(f api.Factory, devices []api.Device) int {
	if f.DeviceCount != nil && *f.DeviceCount > 0 {
		return *f.DeviceCount
	}
	n := 0
	for _, d := range devices {
		if d.FactoryID == f.ID {
			n++
		}
	}
	return n
}

// FactoryUserCount prefers the server supplied count and recomputes it
// when absent or zero.
func FactoryUserCount(f api.Factory, users []api.User) int {
	if f.UserCount != nil && *f.UserCount > 0 {
		return *f.UserCount
	}
	n := 0
	for _, u := range users {
		if u.FactoryID != nil && *u.FactoryID == f.ID {
			n++
		}
	}
	return n
}

// Summary aggregates live device values.
type Summary struct {
	AvgTemperature *float64
	AvgGasIndex    *float64
	MaxVibration   *float64
	LastSeen       *api.Timestamp
	Uptime         float64
	Active         int
	Total          int
}

// Summarize averages temperature and gas index over active devices that
// carry telemetry, takes the largest vibration axis among them, and
// reports the active share of all devices as uptime.
func Summarize(devices []api.Device) Summary {
	s := Summary{Total: len(devices)}

	var tempSum, gasSum float64
	var sampled int
	for _, d := range devices {
		if d.LastSeen != nil && (s.LastSeen == nil || d.LastSeen.After(s.LastSeen.Time)) {
			s.LastSeen = d.LastSeen
		}
		if !d.IsActive {
			continue
		}
		s.Active++
		if d.Telemetry == nil {
			continue
		}
		sampled++
		tempSum += d.Telemetry.Temperature
		gasSum += d.Telemetry.GasIndex
		if v := d.Telemetry.MaxVibration(); s.MaxVibration == nil || v > *s.MaxVibration {
			s.MaxVibration = api.Float(v)
		}
	}

	if sampled > 0 {
		s.AvgTemperature = api.Float(tempSum / float64(sampled))
		s.AvgGasIndex = api.Float(gasSum / float64(sampled))
	}
	if s.Total > 0 {
		s.Uptime = float64(s.Active) / float64(s.Total) * 100
	}
	return s
}

// VibrationHealth grades the largest vibration axis.
func VibrationHealth(maxAxis *float64) string {
	switch {
	case maxAxis == nil:
		return api.VibrationUnknown
	case *maxAxis > VibrationCriticalAbove:
		return api.VibrationCritical
	case *maxAxis > VibrationModerateAbove:
		return api.VibrationModerate
	default:
		return api.VibrationGood
	}
}

// LatestFromDevices builds the fleet summary locally, for when the backend
// has none.
func LatestFromDevices(devices []api.Device) api.LatestData {
	s := Summarize(devices)
	latest := api.LatestData{
		Temperature:     s.AvgTemperature,
		GasIndex:        s.AvgGasIndex,
		VibrationHealth: VibrationHealth(s.MaxVibration),
		LastUpdate:      s.LastSeen,
	}
	if s.Total > 0 {
		latest.DeviceUptime = api.Float(s.Uptime)
	}
	return latest
}

// Status is the colour band of a metric card.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// TemperatureStatus grades the average temperature.
func TemperatureStatus(v *float64) Status {
	if v != nil && *v > TemperatureCriticalAbove {
		return StatusCritical
	}
	return StatusNormal
}

// GasStatus grades the average gas index.
func GasStatus(v *float64) Status {
	if v != nil && *v > GasWarningAbove {
		return StatusWarning
	}
	return StatusNormal
}

// VibrationStatus maps a vibration health grade to a card status.
func VibrationStatus(health string) Status {
	switch health {
	case api.VibrationCritical:
		return StatusCritical
	case api.VibrationModerate:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// UptimeStatus grades the uptime percentage.
func UptimeStatus(v *float64) Status {
	if v != nil && *v < UptimeWarningBelow {
		return StatusWarning
	}
	return StatusNormal
}

// RecentWindow orders readings oldest first and keeps the newest n.
// Readings without a timestamp sort first.
func RecentWindow(readings []api.Reading, n int) []api.Reading {
	out := make([]api.Reading, len(readings))
	copy(out, readings)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Timestamp, out[j].Timestamp
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(b.Time)
		}
	})
	if n >= 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
