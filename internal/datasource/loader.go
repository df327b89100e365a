package datasource

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/metrics"
)

// Collection identifies one fetch a screen needs.
type Collection string

const (
	Users      Collection = "users"
	Factories  Collection = "factories"
	Devices    Collection = "devices"
	Alerts     Collection = "alerts"
	Latest     Collection = "latest"
	TimeSeries Collection = "timeseries"
)

// Snapshot is the per-request state of one screen. Each collection starts
// with placeholder content and is replaced by a non-empty remote result.
type Snapshot struct {
	Origins   map[Collection]Origin
	Users     []api.User
	Factories []api.Factory
	Devices   []api.Device
	Alerts    []api.Alert
	Series    []api.Reading
	Latest    api.LatestData
}

// Remote reports whether c was read from the backend.
func (s *Snapshot) Remote(c Collection) bool {
	return s.Origins[c] == OriginRemote
}

// Loader fills snapshots.
type Loader struct {
	logger  *slog.Logger
	metrics *metrics.ConsoleMetrics
}

// NewLoader creates a Loader. m may be nil.
func NewLoader(logger *slog.Logger, m *metrics.ConsoleMetrics) (*Loader, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Loader{logger: logger, metrics: m}, nil
}

// Load fetches the requested collections concurrently. Failed or empty
// remote fetches leave the placeholder content in place and are never
// returned as errors. The time series is read for the first resolved
// device, so requesting it also loads the devices.
func (l *Loader) Load(ctx context.Context, remote, placeholder Source, collections ...Collection) *Snapshot {
	snap := &Snapshot{Origins: make(map[Collection]Origin, len(collections))}
	want := make(map[Collection]bool, len(collections))
	for _, c := range collections {
		want[c] = true
	}

	var mu sync.Mutex
	record := func(c Collection, origin Origin, reason string, err error) {
		mu.Lock()
		snap.Origins[c] = origin
		mu.Unlock()
		if origin == OriginRemote {
			return
		}
		l.logger.Debug("using placeholder data", "collection", string(c), "reason", reason, "error", err)
		if l.metrics != nil {
			l.metrics.PlaceholderFallbacks.WithLabelValues(string(c), reason).Inc()
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if want[Users] {
		eg.Go(func() error {
			fallback, _ := placeholder.Users(egCtx)
			got, err := remote.Users(egCtx)
			var origin Origin
			var reason string
			snap.Users, origin, reason = Prefer(got, err, fallback)
			record(Users, origin, reason, err)
			return nil
		})
	}

	if want[Factories] {
		eg.Go(func() error {
			fallback, _ := placeholder.Factories(egCtx)
			got, err := remote.Factories(egCtx)
			var origin Origin
			var reason string
			snap.Factories, origin, reason = Prefer(got, err, fallback)
			record(Factories, origin, reason, err)
			return nil
		})
	}

	if want[Devices] || want[TimeSeries] {
		eg.Go(func() error {
			fallback, _ := placeholder.Devices(egCtx)
			got, err := remote.Devices(egCtx)
			devices, origin, reason := Prefer(got, err, fallback)
			snap.Devices = devices
			record(Devices, origin, reason, err)

			if want[TimeSeries] {
				l.loadSeries(egCtx, snap, remote, placeholder, origin == OriginRemote, record)
			}
			return nil
		})
	}

	if want[Alerts] {
		eg.Go(func() error {
			fallback, _ := placeholder.Alerts(egCtx)
			got, err := remote.Alerts(egCtx)
			var origin Origin
			var reason string
			snap.Alerts, origin, reason = Prefer(got, err, fallback)
			record(Alerts, origin, reason, err)
			return nil
		})
	}

	if want[Latest] {
		eg.Go(func() error {
			fallback, _ := placeholder.Latest(egCtx)
			got, err := remote.Latest(egCtx)
			var origin Origin
			var reason string
			snap.Latest, origin, reason = PreferLatest(got, err, *fallback)
			record(Latest, origin, reason, err)
			return nil
		})
	}

	// Every goroutine absorbs its own error.
	_ = eg.Wait()
	return snap
}

// loadSeries reads the chart window for the first device. Placeholder
// devices have no backend history, so their series is synthesised.
func (l *Loader) loadSeries(
	ctx context.Context,
	snap *Snapshot,
	remote, placeholder Source,
	devicesRemote bool,
	record func(Collection, Origin, string, error),
) {
	if len(snap.Devices) == 0 {
		record(TimeSeries, OriginPlaceholder, ReasonEmpty, nil)
		return
	}
	id := snap.Devices[0].ID

	fallback, _ := placeholder.TimeSeries(ctx, id)
	if !devicesRemote {
		snap.Series = RecentWindow(fallback, SeriesPoints)
		record(TimeSeries, OriginPlaceholder, ReasonEmpty, nil)
		return
	}

	got, err := remote.TimeSeries(ctx, id)
	series, origin, reason := Prefer(got, err, fallback)
	snap.Series = RecentWindow(series, SeriesPoints)
	record(TimeSeries, origin, reason, err)
}
