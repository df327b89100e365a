// Package views holds the templ components of the console.
package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/a-h/templ"

	"carbonseed.io/console/internal/audit"
	"carbonseed.io/console/internal/datasource"
	"carbonseed.io/console/internal/ingest"
	"carbonseed.io/console/pkg/api"
)

// Tabs of the dashboard and admin screens.
const (
	TabOverview  = "overview"
	TabDevices   = "devices"
	TabAlerts    = "alerts"
	TabUsers     = "users"
	TabFactories = "factories"
	TabData      = "data"
)

// DashboardTabs lists the tabs of /dashboard.
var DashboardTabs = []string{TabOverview, TabDevices, TabAlerts}

// AdminTabs lists the tabs of /admin.
var AdminTabs = []string{TabOverview, TabUsers, TabFactories, TabDevices, TabData}

const (
	// RecentAlertCount is how many alerts the overview lists.
	RecentAlertCount = 3
	// RecentUserCount is how many users the admin overview lists.
	RecentUserCount = 5
)

var tabTitles = map[string]string{
	TabOverview: "Dashboard Overview",
	TabDevices:  "Device Management",
	TabAlerts:   "Alert Center",
}

var adminTitles = map[string]string{
	TabOverview:  "Admin Overview",
	TabUsers:     "User Management",
	TabFactories: "Factories",
	TabDevices:   "Devices",
	TabData:      "Data Upload",
}

// Dashboard is everything the dashboard screen shows.
type Dashboard struct {
	Now     time.Time
	Online  datasource.OnlineFunc
	User    api.User
	Tab     string
	Latest  api.LatestData
	Series  []api.Reading
	Devices []api.Device
	Alerts  []api.Alert
}

func (d Dashboard) online(dev api.Device) bool {
	if d.Online == nil {
		return datasource.ByFlag(dev)
	}
	return d.Online(dev)
}

// Admin is everything the admin screen shows. Online state there follows
// the backend's is_active flag.
type Admin struct {
	User      api.User
	Tab       string
	Users     []api.User
	Factories []api.Factory
	Devices   []api.Device
	Upload    ingest.Form
	History   []audit.Entry
	// AuditEnabled shows the upload history block.
	AuditEnabled bool
}

// CanSimulate reports whether the user may open the data simulator.
func CanSimulate(role api.Role) bool {
	return role == api.RoleAdmin || role == api.RoleFactoryOwner
}

type industry struct{ name, desc string }

var industries = []industry{
	{"Steel & Foundries", "Furnace monitoring, energy optimization"},
	{"Textiles", "Loom efficiency, humidity control"},
	{"Food Processing", "Cold chain, quality assurance"},
	{"Plastics & Packaging", "Extrusion monitoring, waste reduction"},
	{"Auto Components", "CNC health, vibration analysis"},
	{"Pharmaceuticals", "GMP compliance, batch tracking"},
}

var features = []industry{
	{"Edge Sensing", "Industrial-grade precision at 100Hz sampling rate"},
	{"Real-time Streaming", "MQTT protocol with sub-second latency"},
	{"ML Intelligence", "Predict equipment failures 48 hours ahead"},
	{"Auto Compliance", "SPCB, PAT, CBAM reports automated"},
}

type framework struct{ code, name, desc string }

var frameworks = []framework{
	{"SPCB", "State Pollution Control Board", "Continuous emission monitoring"},
	{"PAT", "Perform Achieve Trade", "Energy efficiency certification"},
	{"CBAM", "Carbon Border Adjustment", "EU export readiness"},
}

type report struct{ kind, label string }

var quickReports = []report{
	{"weekly", "Weekly Summary"},
	{"monthly", "Monthly Analysis"},
	{"compliance", "Compliance Report"},
}

type card struct {
	title, value, unit string
	status             datasource.Status
}

func cards(latest api.LatestData) []card {
	health := latest.VibrationHealth
	if health == "" {
		health = api.VibrationUnknown
	}
	temp := "--"
	if latest.Temperature != nil {
		temp = fmt.Sprintf("%.1f°", *latest.Temperature)
	}
	return []card{
		{"Temperature", temp, "C", datasource.TemperatureStatus(latest.Temperature)},
		{"Gas Index", orDash(latest.GasIndex, "%.0f"), "ppm", datasource.GasStatus(latest.GasIndex)},
		{"Vibration", health, "", datasource.VibrationStatus(health)},
		{"Uptime", orDash(latest.DeviceUptime, "%.1f"), "%", datasource.UptimeStatus(latest.DeviceUptime)},
	}
}

func tabURL(base, tab string) templ.SafeURL {
	return templ.URL(base + "?tab=" + tab)
}

func reportURL(kind string) templ.SafeURL {
	return templ.URL("/dashboard/reports/" + kind)
}

func tabLabel(t string) string {
	switch t {
	case TabData:
		return "Data Upload"
	case "":
		return ""
	default:
		return strings.ToUpper(t[:1]) + t[1:]
	}
}

func deviceState(online bool) string {
	if online {
		return "Online"
	}
	return "Offline"
}

func recentUsers(users []api.User) []api.User {
	if len(users) > RecentUserCount {
		return users[:RecentUserCount]
	}
	return users
}

func selectedKind(form ingest.Form) ingest.Kind {
	if form.Kind == "" {
		return ingest.KindDevices
	}
	return form.Kind
}

// textareaValue restores the newline HTML parsers drop after <textarea>.
func textareaValue(buf string) string {
	return "\n" + buf
}

func outcomeLabel(e audit.Entry) string {
	if e.Demo {
		return e.Outcome + " (demo)"
	}
	return e.Outcome
}

// orDash renders "--" for missing values.
func orDash(v *float64, format string) string {
	if v == nil {
		return "--"
	}
	return fmt.Sprintf(format, *v)
}

func when(ts *api.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format("2006-01-02 15:04:05 UTC")
}

func joined(ts *api.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.DateOnly)
}

func ago(now time.Time, ts *api.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "never"
	}
	d := now.Sub(ts.Time).Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return ts.UTC().Format(time.DateOnly)
	}
}
