package datasource_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"carbonseed.io/console/internal/datasource"
	"carbonseed.io/console/pkg/api"
)

var _ = Describe("Derived metrics", func() {
	now := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	seenAgo := func(d time.Duration) *api.Timestamp { return api.At(now.Add(-d)) }

	Describe("online status", func() {
		devices := []api.Device{
			{ID: 1, IsActive: true, LastSeen: seenAgo(10 * time.Second)},
			{ID: 2, IsActive: true, LastSeen: seenAgo(299999 * time.Millisecond)},
			{ID: 3, IsActive: true, LastSeen: seenAgo(300000 * time.Millisecond)},
			{ID: 4, IsActive: false, LastSeen: seenAgo(time.Hour)},
			{ID: 5, IsActive: true},
		}

		It("counts devices seen strictly within the freshness threshold", func() {
			online := datasource.BySeen(now, datasource.DefaultFreshness)
			Expect(datasource.OnlineCount(devices, online)).To(Equal(2))
		})

		It("recomputes against the current time", func() {
			later := datasource.BySeen(now.Add(time.Minute), datasource.DefaultFreshness)
			Expect(datasource.OnlineCount(devices, later)).To(Equal(1))
		})

		It("can trust the active flag instead", func() {
			Expect(datasource.OnlineCount(devices, datasource.ByFlag)).To(Equal(4))
		})
	})

	Describe("factory counts", func() {
		devices := []api.Device{{FactoryID: 1}, {FactoryID: 1}, {FactoryID: 2}}
		users := []api.User{{FactoryID: api.Int(2)}, {FactoryID: api.Int(2)}, {}}

		It("prefers positive server counts", func() {
			f := api.Factory{ID: 1, DeviceCount: api.Int(9), UserCount: api.Int(4)}
			Expect(datasource.FactoryDeviceCount(f, devices)).To(Equal(9))
			Expect(datasource.FactoryUserCount(f, users)).To(Equal(4))
		})

		It("recomputes absent or zero counts", func() {
			f := api.Factory{ID: 2, DeviceCount: api.Int(0)}
			Expect(datasource.FactoryDeviceCount(f, devices)).To(Equal(1))
			Expect(datasource.FactoryUserCount(f, users)).To(Equal(2))
		})
	})

	Describe("Summarize", func() {
		It("averages over active devices with telemetry", func() {
			s := datasource.Summarize([]api.Device{
				{IsActive: true, Telemetry: &api.Telemetry{Temperature: 800, GasIndex: 200, VibrationX: 1, VibrationY: 7, VibrationZ: 2}},
				{IsActive: true, Telemetry: &api.Telemetry{Temperature: 900, GasIndex: 300, VibrationZ: 3}},
				{IsActive: false, Telemetry: &api.Telemetry{Temperature: 2000, GasIndex: 2000, VibrationX: 50}},
				{IsActive: false},
			})

			Expect(*s.AvgTemperature).To(BeNumerically("~", 850, 1e-9))
			Expect(*s.AvgGasIndex).To(BeNumerically("~", 250, 1e-9))
			Expect(*s.MaxVibration).To(BeNumerically("==", 7))
			Expect(s.Active).To(Equal(2))
			Expect(s.Total).To(Equal(4))
			Expect(s.Uptime).To(BeNumerically("==", 50))
		})

		It("leaves averages unset without samples", func() {
			s := datasource.Summarize(nil)
			Expect(s.AvgTemperature).To(BeNil())
			Expect(s.MaxVibration).To(BeNil())
			Expect(s.Uptime).To(BeZero())
		})
	})

	DescribeTable("VibrationHealth",
		func(v *float64, want string) {
			Expect(datasource.VibrationHealth(v)).To(Equal(want))
		},
		Entry("no data", nil, api.VibrationUnknown),
		Entry("low", api.Float(2.1), api.VibrationGood),
		Entry("exactly 5", api.Float(5), api.VibrationGood),
		Entry("above 5", api.Float(5.1), api.VibrationModerate),
		Entry("exactly 10", api.Float(10), api.VibrationModerate),
		Entry("above 10", api.Float(10.5), api.VibrationCritical),
	)

	DescribeTable("card status",
		func(got, want datasource.Status) {
			Expect(got).To(Equal(want))
		},
		Entry("temperature normal", datasource.TemperatureStatus(api.Float(900)), datasource.StatusNormal),
		Entry("temperature critical", datasource.TemperatureStatus(api.Float(900.1)), datasource.StatusCritical),
		Entry("temperature unknown", datasource.TemperatureStatus(nil), datasource.StatusNormal),
		Entry("gas warning", datasource.GasStatus(api.Float(401)), datasource.StatusWarning),
		Entry("gas normal", datasource.GasStatus(api.Float(400)), datasource.StatusNormal),
		Entry("vibration critical", datasource.VibrationStatus(api.VibrationCritical), datasource.StatusCritical),
		Entry("vibration moderate", datasource.VibrationStatus(api.VibrationModerate), datasource.StatusWarning),
		Entry("vibration good", datasource.VibrationStatus(api.VibrationGood), datasource.StatusNormal),
		Entry("uptime warning", datasource.UptimeStatus(api.Float(79.9)), datasource.StatusWarning),
		Entry("uptime normal", datasource.UptimeStatus(api.Float(80)), datasource.StatusNormal),
	)

	Describe("RecentWindow", func() {
		reading := func(minute int) api.Reading {
			return api.Reading{DeviceID: 1, Timestamp: api.At(now.Add(time.Duration(minute) * time.Minute))}
		}

		It("sorts oldest first and keeps the newest n", func() {
			in := []api.Reading{reading(5), reading(1), reading(4), reading(2), reading(3)}
			out := datasource.RecentWindow(in, 3)

			Expect(out).To(HaveLen(3))
			Expect(out[0].Timestamp.Time).To(BeTemporally("==", now.Add(3*time.Minute)))
			Expect(out[2].Timestamp.Time).To(BeTemporally("==", now.Add(5*time.Minute)))
		})

		It("does not reorder its input", func() {
			in := []api.Reading{reading(2), reading(1)}
			datasource.RecentWindow(in, 20)
			Expect(in[0].Timestamp.Time).To(BeTemporally("==", now.Add(2*time.Minute)))
		})
	})

	Describe("ApplyRole", func() {
		users := []api.User{{ID: 1, Role: api.RoleViewer}, {ID: 2, Role: api.RoleAdmin}}

		It("switches the role on a copy", func() {
			out := datasource.ApplyRole(users, 1, api.RoleOperator)
			Expect(out[0].Role).To(Equal(api.RoleOperator))
			Expect(out[1].Role).To(Equal(api.RoleAdmin))
			Expect(users[0].Role).To(Equal(api.RoleViewer))
		})

		It("ignores unknown ids", func() {
			out := datasource.ApplyRole(users, 42, api.RoleOperator)
			Expect(out).To(Equal(users))
		})
	})
})
