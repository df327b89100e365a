package datasource_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"carbonseed.io/console/internal/datasource"
	"carbonseed.io/console/pkg/api"
)

// fakeSource returns canned collections and records every call.
type fakeSource struct {
	mu        sync.Mutex
	calls     []string
	seriesFor []int

	users     []api.User
	factories []api.Factory
	devices   []api.Device
	alerts    []api.Alert
	latest    *api.LatestData
	series    []api.Reading
	err       error
}

func (f *fakeSource) called(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeSource) Users(context.Context) ([]api.User, error) {
	f.called("users")
	return f.users, f.err
}

func (f *fakeSource) Factories(context.Context) ([]api.Factory, error) {
	f.called("factories")
	return f.factories, f.err
}

func (f *fakeSource) Devices(context.Context) ([]api.Device, error) {
	f.called("devices")
	return f.devices, f.err
}

func (f *fakeSource) Alerts(context.Context) ([]api.Alert, error) {
	f.called("alerts")
	return f.alerts, f.err
}

func (f *fakeSource) Latest(context.Context) (*api.LatestData, error) {
	f.called("latest")
	return f.latest, f.err
}

func (f *fakeSource) TimeSeries(_ context.Context, deviceID int) ([]api.Reading, error) {
	f.called("timeseries")
	f.mu.Lock()
	f.seriesFor = append(f.seriesFor, deviceID)
	f.mu.Unlock()
	return f.series, f.err
}

var _ = Describe("Loader", func() {
	var (
		logger      *slog.Logger
		loader      *datasource.Loader
		placeholder *datasource.Placeholder
		now         time.Time
		ctx         context.Context
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		var err error
		loader, err = datasource.NewLoader(logger, nil)
		Expect(err).NotTo(HaveOccurred())

		now = time.Now()
		placeholder = datasource.NewPlaceholder(now, 7)
		ctx = context.Background()
	})

	It("rejects a nil logger", func() {
		_, err := datasource.NewLoader(nil, nil)
		Expect(err).To(MatchError("logger cannot be nil"))
	})

	Context("when the backend fails", func() {
		It("keeps placeholder data for every collection", func() {
			remote := &fakeSource{err: errors.New("connection refused")}

			snap := loader.Load(ctx, remote, placeholder,
				datasource.Users, datasource.Factories, datasource.Devices,
				datasource.Alerts, datasource.Latest, datasource.TimeSeries)

			want, _ := placeholder.Users(ctx)
			Expect(snap.Users).To(Equal(want))
			Expect(snap.Factories).To(HaveLen(2))
			Expect(snap.Devices).To(HaveLen(8))
			Expect(snap.Alerts).To(HaveLen(3))
			Expect(snap.Latest.VibrationHealth).To(Equal(api.VibrationModerate))
			Expect(snap.Series).To(HaveLen(datasource.SeriesPoints))
			for _, c := range []datasource.Collection{datasource.Users, datasource.Devices, datasource.Latest, datasource.TimeSeries} {
				Expect(snap.Remote(c)).To(BeFalse(), string(c))
			}
		})

		It("does not ask the backend for a series of placeholder devices", func() {
			remote := &fakeSource{err: errors.New("boom")}
			loader.Load(ctx, remote, placeholder, datasource.TimeSeries)
			Expect(remote.calls).To(ConsistOf("devices"))
		})
	})

	Context("when the backend answers with empty collections", func() {
		It("keeps placeholder data", func() {
			remote := &fakeSource{users: []api.User{}, latest: &api.LatestData{VibrationHealth: api.VibrationUnknown}}

			snap := loader.Load(ctx, remote, placeholder, datasource.Users, datasource.Latest)

			Expect(snap.Users).To(HaveLen(5))
			Expect(snap.Origins[datasource.Users]).To(Equal(datasource.OriginPlaceholder))
			Expect(snap.Latest.Temperature).NotTo(BeNil())
			Expect(snap.Origins[datasource.Latest]).To(Equal(datasource.OriginPlaceholder))
		})
	})

	Context("when the backend answers with content", func() {
		var remote *fakeSource

		BeforeEach(func() {
			remote = &fakeSource{
				users:   []api.User{{ID: 10, Email: "ops@plant.example", Role: api.RoleOperator}},
				devices: []api.Device{{ID: 42, DeviceID: "ESP32-X-042"}, {ID: 43, DeviceID: "ESP32-X-043"}},
				alerts:  []api.Alert{{ID: 1, Title: "Overheat"}},
				latest:  &api.LatestData{Temperature: api.Float(880), VibrationHealth: api.VibrationGood},
			}
			for i := range 30 {
				remote.series = append(remote.series, api.Reading{
					DeviceID:  42,
					Timestamp: api.At(now.Add(-time.Duration(i) * time.Minute)),
				})
			}
		})

		It("replaces the placeholder collections", func() {
			snap := loader.Load(ctx, remote, placeholder,
				datasource.Users, datasource.Devices, datasource.Alerts, datasource.Latest)

			Expect(snap.Users).To(Equal(remote.users))
			Expect(snap.Devices).To(Equal(remote.devices))
			Expect(snap.Alerts).To(Equal(remote.alerts))
			Expect(*snap.Latest.Temperature).To(BeNumerically("==", 880))
			Expect(snap.Remote(datasource.Users)).To(BeTrue())
		})

		It("reads the series of the first device and keeps the newest points in order", func() {
			snap := loader.Load(ctx, remote, placeholder, datasource.Devices, datasource.TimeSeries)

			Expect(remote.seriesFor).To(Equal([]int{42}))
			Expect(snap.Series).To(HaveLen(datasource.SeriesPoints))
			Expect(snap.Series[len(snap.Series)-1].Timestamp.Time).To(BeTemporally("~", now, time.Millisecond))
			for i := 1; i < len(snap.Series); i++ {
				Expect(snap.Series[i].Timestamp.After(snap.Series[i-1].Timestamp.Time)).To(BeTrue())
			}
		})

		It("only fetches the requested collections", func() {
			loader.Load(ctx, remote, placeholder, datasource.Users)
			Expect(remote.calls).To(ConsistOf("users"))
		})
	})
})

var _ = Describe("Placeholder", func() {
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)
	p := datasource.NewPlaceholder(now, 3)

	It("reports one stale device", func() {
		devices, err := p.Devices(ctx)
		Expect(err).NotTo(HaveOccurred())

		online := datasource.BySeen(now, datasource.DefaultFreshness)
		Expect(datasource.OnlineCount(devices, online)).To(Equal(7))
	})

	It("derives the fleet summary from its devices", func() {
		latest, err := p.Latest(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(*latest.Temperature).To(BeNumerically("~", 5974.8/7, 1e-6))
		Expect(*latest.GasIndex).To(BeNumerically("~", 2000.0/7, 1e-6))
		Expect(*latest.DeviceUptime).To(BeNumerically("~", 87.5, 1e-9))
		Expect(latest.VibrationHealth).To(Equal(api.VibrationModerate))
		Expect(latest.LastUpdate.Time).To(BeTemporally("==", now.Add(-15*time.Second)))
	})

	It("produces a deterministic series for a seed", func() {
		a, _ := p.TimeSeries(ctx, 1)
		b, _ := datasource.NewPlaceholder(now, 3).TimeSeries(ctx, 1)
		Expect(a).To(HaveLen(datasource.SeriesPoints))
		Expect(*a[0].Temperature).To(Equal(*b[0].Temperature))
		Expect(a[len(a)-1].Timestamp.Time).To(BeTemporally("==", now))
	})
})
