package datasource

import (
	"context"
	"time"

	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/telemetry"
)

// SeriesPoints is how many readings a chart shows.
const SeriesPoints = 20

const seriesStep = 5 * time.Minute

// Placeholder serves fixed sample records. Times are relative to the
// construction instant so that online indicators stay meaningful.
type Placeholder struct {
	now  time.Time
	seed uint64
}

// NewPlaceholder builds a placeholder source anchored at now. The seed fixes
// the synthetic time series.
func NewPlaceholder(now time.Time, seed uint64) *Placeholder {
	if seed == 0 {
		seed = 1
	}
	return &Placeholder{now: now, seed: seed}
}

func date(month time.Month, day int) *api.Timestamp {
	return api.At(time.Date(2025, month, day, 0, 0, 0, 0, time.UTC))
}

// Users implements Source.
func (p *Placeholder) Users(context.Context) ([]api.User, error) {
	return []api.User{
		{ID: 1, Email: "admin@carbonseed.io", FullName: "Admin User", Role: api.RoleAdmin, IsActive: true, CreatedAt: date(time.January, 1)},
		{ID: 2, Email: "owner@steelforge.in", FullName: "Rajesh Kumar", Role: api.RoleFactoryOwner, FactoryID: api.Int(1), IsActive: true, CreatedAt: date(time.January, 5)},
		{ID: 3, Email: "operator@steelforge.in", FullName: "Suresh Sharma", Role: api.RoleOperator, FactoryID: api.Int(1), IsActive: true, CreatedAt: date(time.January, 10)},
		{ID: 4, Email: "owner@chemprocessing.in", FullName: "Amit Patel", Role: api.RoleFactoryOwner, FactoryID: api.Int(2), IsActive: true, CreatedAt: date(time.January, 15)},
		{ID: 5, Email: "viewer@steelforge.in", FullName: "Priya Singh", Role: api.RoleViewer, FactoryID: api.Int(1), IsActive: true, CreatedAt: date(time.January, 20)},
	}, nil
}

// Factories implements Source.
func (p *Placeholder) Factories(context.Context) ([]api.Factory, error) {
	return []api.Factory{
		{ID: 1, Name: "Steel Forge Industries", Location: "Pune, Maharashtra", Industry: "steel", ContactEmail: "contact@steelforge.in", DeviceCount: api.Int(6), UserCount: api.Int(3)},
		{ID: 2, Name: "Chemical Processing Ltd", Location: "Vadodara, Gujarat", Industry: "chemicals", ContactEmail: "info@chemprocessing.in", DeviceCount: api.Int(2), UserCount: api.Int(1)},
	}, nil
}

// Devices implements Source.
func (p *Placeholder) Devices(context.Context) ([]api.Device, error) {
	seen := func(ago time.Duration) *api.Timestamp {
		return api.At(p.now.Add(-ago))
	}
	return []api.Device{
		{ID: 1, DeviceID: "ESP32-SF-001", DeviceName: "Furnace Monitor 1", FactoryID: 1, MachineName: "Main Blast Furnace", Location: "Floor 1, Bay A", IsActive: true, LastSeen: seen(60 * time.Second),
			Telemetry: &api.Telemetry{Temperature: 872.4, GasIndex: 312, VibrationX: 3.1, VibrationY: 2.6, VibrationZ: 4.2, PowerConsumption: 58.5}},
		{ID: 2, DeviceID: "ESP32-SF-002", DeviceName: "Cooling Tower Monitor", FactoryID: 1, MachineName: "Cooling Tower Unit 3", Location: "Floor 2, Bay B", IsActive: true, LastSeen: seen(120 * time.Second),
			Telemetry: &api.Telemetry{Temperature: 846.1, GasIndex: 248, VibrationX: 1.4, VibrationY: 1.1, VibrationZ: 1.8, PowerConsumption: 22.3}},
		{ID: 3, DeviceID: "ESP32-SF-003", DeviceName: "Press Machine Sensor", FactoryID: 1, MachineName: "Hydraulic Press A", Location: "Floor 1, Bay C", IsActive: true, LastSeen: seen(30 * time.Second),
			Telemetry: &api.Telemetry{Temperature: 858.9, GasIndex: 265, VibrationX: 5.8, VibrationY: 4.9, VibrationZ: 6.4, PowerConsumption: 41.0}},
		{ID: 4, DeviceID: "ESP32-SF-004", DeviceName: "Compressor Monitor", FactoryID: 1, MachineName: "Air Compressor Unit 1", Location: "Floor 1, Bay D", IsActive: true, LastSeen: seen(90 * time.Second),
			Telemetry: &api.Telemetry{Temperature: 839.5, GasIndex: 231, VibrationX: 2.2, VibrationY: 2.0, VibrationZ: 2.7, PowerConsumption: 35.8}},
		{ID: 5, DeviceID: "ESP32-SF-005", DeviceName: "Welding Station Sensor", FactoryID: 1, MachineName: "Automated Welder 2", Location: "Floor 2, Bay A", IsActive: false, LastSeen: seen(3600 * time.Second)},
		{ID: 6, DeviceID: "ESP32-SF-006", DeviceName: "Conveyor Belt Monitor", FactoryID: 1, MachineName: "Main Assembly Line", Location: "Floor 1, Bay E", IsActive: true, LastSeen: seen(45 * time.Second),
			Telemetry: &api.Telemetry{Temperature: 851.2, GasIndex: 240, VibrationX: 2.9, VibrationY: 3.3, VibrationZ: 2.5, PowerConsumption: 27.4}},
		{ID: 7, DeviceID: "ESP32-CP-001", DeviceName: "Reactor Monitor", FactoryID: 2, MachineName: "Chemical Reactor A", Location: "Building 3, Floor 1", IsActive: true, LastSeen: seen(15 * time.Second),
			Telemetry: &api.Telemetry{Temperature: 864.0, GasIndex: 418, VibrationX: 1.9, VibrationY: 1.7, VibrationZ: 2.1, PowerConsumption: 49.6}},
		{ID: 8, DeviceID: "ESP32-CP-002", DeviceName: "Mixing Tank Sensor", FactoryID: 2, MachineName: "Industrial Mixer B", Location: "Building 3, Floor 2", IsActive: true, LastSeen: seen(75 * time.Second),
			Telemetry: &api.Telemetry{Temperature: 842.7, GasIndex: 286, VibrationX: 3.6, VibrationY: 3.0, VibrationZ: 3.9, PowerConsumption: 31.2}},
	}, nil
}

// Alerts implements Source.
func (p *Placeholder) Alerts(context.Context) ([]api.Alert, error) {
	at := func(ago time.Duration) *api.Timestamp {
		return api.At(p.now.Add(-ago))
	}
	return []api.Alert{
		{ID: 1, DeviceID: api.Int(7), FactoryID: api.Int(2), AlertType: "gas_index", Severity: api.SeverityWarning, Status: api.AlertActive,
			Title: "Elevated gas index", Message: "Reactor Monitor reports a gas index above 400",
			MetricValue: api.Float(418), ThresholdValue: api.Float(400), TriggeredAt: at(4 * time.Minute)},
		{ID: 2, DeviceID: api.Int(3), FactoryID: api.Int(1), AlertType: "vibration", Severity: api.SeverityWarning, Status: api.AlertActive,
			Title: "Vibration above baseline", Message: "Hydraulic Press A vibration exceeds 5 mm/s on the Z axis",
			MetricValue: api.Float(6.4), ThresholdValue: api.Float(5), TriggeredAt: at(11 * time.Minute)},
		{ID: 3, DeviceID: api.Int(5), FactoryID: api.Int(1), AlertType: "device_offline", Severity: api.SeverityInfo, Status: api.AlertActive,
			Title: "Device offline", Message: "Welding Station Sensor has not reported for an hour",
			TriggeredAt: at(55 * time.Minute)},
	}, nil
}

// Latest implements Source. The summary is derived from the sample devices.
func (p *Placeholder) Latest(ctx context.Context) (*api.LatestData, error) {
	devices, _ := p.Devices(ctx)
	latest := LatestFromDevices(devices)
	return &latest, nil
}

// TimeSeries implements Source.
func (p *Placeholder) TimeSeries(_ context.Context, deviceID int) ([]api.Reading, error) {
	gen := telemetry.NewGenerator(deviceID, p.seed+uint64(max(deviceID, 0)))
	return gen.Series(p.now, SeriesPoints, seriesStep), nil
}

var _ Source = (*Placeholder)(nil)
var _ Source = (*Remote)(nil)
