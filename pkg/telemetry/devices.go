package telemetry

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// DeviceRecord is one entry of a /devices/bulk payload.
type DeviceRecord struct {
	DeviceID    string `json:"device_id"`
	DeviceName  string `json:"device_name"`
	MachineName string `json:"machine_name,omitempty"`
	Location    string `json:"location,omitempty"`
	FactoryID   int    `json:"factory_id"`
}

var (
	machines = []string{
		"Blast Furnace", "Induction Furnace", "Cooling Tower", "Hydraulic Press",
		"Air Compressor", "Automated Welder", "Conveyor Line", "Rolling Mill",
		"Chemical Reactor", "Industrial Mixer", "Boiler", "Extruder",
	}
	roles = []string{"Monitor", "Sensor", "Gauge", "Node"}
	bays  = []string{"A", "B", "C", "D", "E"}
)

// Devices generates n device records for factoryID with ids
// ESP32-<prefix>-NNN. A zero seed picks a random one.
func Devices(prefix string, factoryID, n int, seed uint64) []DeviceRecord {
	if n <= 0 {
		return nil
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	f := gofakeit.New(seed)

	out := make([]DeviceRecord, 0, n)
	for i := 1; i <= n; i++ {
		machine := f.RandomString(machines)
		out = append(out, DeviceRecord{
			DeviceID:    fmt.Sprintf("ESP32-%s-%03d", prefix, i),
			DeviceName:  fmt.Sprintf("%s %s %d", machine, f.RandomString(roles), i),
			MachineName: fmt.Sprintf("%s Unit %d", machine, f.Number(1, 9)),
			Location:    fmt.Sprintf("Floor %d, Bay %s", f.Number(1, 3), f.RandomString(bays)),
			FactoryID:   factoryID,
		})
	}
	return out
}
