// Package api provides a client and record types for the Carbonseed REST backend.
package api

import (
	"fmt"
	"strings"
)

// Role is the access level of a console user.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleFactoryOwner Role = "factory_owner"
	RoleOperator     Role = "operator"
	RoleViewer       Role = "viewer"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleFactoryOwner, RoleOperator, RoleViewer}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFactoryOwner, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// Label is the human readable role name.
func (r Role) Label() string {
	return strings.ReplaceAll(string(r), "_", " ")
}

// User is an account known to the backend.
type User struct {
	CreatedAt *Timestamp `json:"created_at,omitempty"`
	FactoryID *int       `json:"factory_id,omitempty"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      Role       `json:"role"`
	ID        int        `json:"id"`
	IsActive  bool       `json:"is_active"`
}

// Factory is a customer site.
type Factory struct {
	DeviceCount  *int   `json:"device_count,omitempty"`
	UserCount    *int   `json:"user_count,omitempty"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	Industry     string `json:"industry"`
	ContactEmail string `json:"contact_email,omitempty"`
	ID           int    `json:"id"`
}

// Telemetry holds the live values a sample device reports.
// Records fetched from the backend never carry it.
type Telemetry struct {
	Temperature      float64
	GasIndex         float64
	VibrationX       float64
	VibrationY       float64
	VibrationZ       float64
	PowerConsumption float64
}

// MaxVibration is the largest of the three vibration axes.
func (t Telemetry) MaxVibration() float64 {
	return max(t.VibrationX, t.VibrationY, t.VibrationZ)
}

// Device is a sensor node installed on a machine.
type Device struct {
	LastSeen    *Timestamp `json:"last_seen"`
	Telemetry   *Telemetry `json:"-"`
	DeviceID    string     `json:"device_id"`
	DeviceName  string     `json:"device_name"`
	DeviceType  string     `json:"device_type,omitempty"`
	MachineName string     `json:"machine_name,omitempty"`
	Location    string     `json:"location,omitempty"`
	ID          int        `json:"id"`
	FactoryID   int        `json:"factory_id"`
	IsActive    bool       `json:"is_active"`
}

// Severity ranks an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is a threshold violation raised by the backend.
type Alert struct {
	TriggeredAt    *Timestamp  `json:"triggered_at,omitempty"`
	DeviceID       *int        `json:"device_id,omitempty"`
	FactoryID      *int        `json:"factory_id,omitempty"`
	MetricValue    *float64    `json:"metric_value,omitempty"`
	ThresholdValue *float64    `json:"threshold_value,omitempty"`
	AlertType      string      `json:"alert_type"`
	Severity       Severity    `json:"severity"`
	Status         AlertStatus `json:"status"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	ID             int         `json:"id"`
}

// Vibration health values reported by the backend.
const (
	VibrationGood     = "good"
	VibrationModerate = "moderate"
	VibrationCritical = "critical"
	VibrationUnknown  = "unknown"
)

// LatestData is the fleet summary returned by /data/latest.
type LatestData struct {
	Temperature     *float64   `json:"temperature"`
	GasIndex        *float64   `json:"gas_index"`
	DeviceUptime    *float64   `json:"device_uptime"`
	LastUpdate      *Timestamp `json:"last_update"`
	VibrationHealth string     `json:"vibration_health"`
}

// Empty reports whether the backend had nothing to summarise.
func (l *LatestData) Empty() bool {
	return l == nil ||
		(l.Temperature == nil && l.GasIndex == nil && l.DeviceUptime == nil && l.LastUpdate == nil)
}

// Reading is one telemetry sample.
type Reading struct {
	Timestamp        *Timestamp `json:"timestamp,omitempty"`
	Temperature      *float64   `json:"temperature"`
	GasIndex         *float64   `json:"gas_index"`
	VibrationX       *float64   `json:"vibration_x"`
	VibrationY       *float64   `json:"vibration_y"`
	VibrationZ       *float64   `json:"vibration_z"`
	Humidity         *float64   `json:"humidity"`
	Pressure         *float64   `json:"pressure"`
	PowerConsumption *float64   `json:"power_consumption"`
	ID               int        `json:"id,omitempty"`
	DeviceID         int        `json:"device_id"`
}

// BulkResult is the backend's answer to a bulk upload.
type BulkResult struct {
	Status  string   `json:"status"`
	Errors  []string `json:"errors,omitempty"`
	Created int      `json:"created"`
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ReportTypes lists the downloadable report kinds.
var ReportTypes = []string{"weekly", "monthly", "compliance"}

// ValidReportType reports whether t names a known report.
func ValidReportType(t string) bool {
	for _, r := range ReportTypes {
		if r == t {
			return true
		}
	}
	return false
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
