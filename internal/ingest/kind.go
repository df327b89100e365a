// Package ingest implements the bulk JSON upload flow of the admin console.
package ingest

import (
	"fmt"
	"strings"
)

// Kind is the type of records in an upload.
type Kind string

const (
	KindDevices  Kind = "devices"
	KindReadings Kind = "readings"
	KindAlerts   Kind = "alerts"
)

// Kinds lists the upload kinds in display order.
var Kinds = []Kind{KindDevices, KindReadings, KindAlerts}

var endpoints = map[Kind]string{
	KindDevices:  "/devices/bulk",
	KindReadings: "/data/bulk",
	KindAlerts:   "/alerts/bulk",
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := endpoints[k]; !ok {
		return "", fmt.Errorf("unknown upload kind %q", s)
	}
	return k, nil
}

// Endpoint is the backend path records of kind k are posted to.
func (k Kind) Endpoint() string {
	return endpoints[k]
}

// Label is the capitalised kind name shown on the toggle.
func (k Kind) Label() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Example is a template payload for kind k.
func (k Kind) Example() string {
	return examples[k]
}

var examples = map[Kind]string{
	KindDevices: `{
  "devices": [
    {
      "device_id": "ESP32-NEW-001",
      "device_name": "New Sensor",
      "factory_id": 1,
      "machine_name": "Machine A",
      "location": "Floor 1"
    }
  ]
}`,
	KindReadings: `{
  "readings": [
    {
      "device_id": 1,
      "temperature": 85.5,
      "gas_index": 250,
      "vibration_x": 2.1,
      "vibration_y": 1.8,
      "vibration_z": 2.0,
      "humidity": 45,
      "power_consumption": 35.5
    }
  ]
}`,
	KindAlerts: `{
  "alerts": [
    {
      "device_id": 1,
      "factory_id": 1,
      "alert_type": "temperature_high",
      "severity": "warning",
      "title": "High Temperature",
      "message": "Temperature exceeded threshold",
      "metric_value": 925.5,
      "threshold_value": 900
    }
  ]
}`,
}
