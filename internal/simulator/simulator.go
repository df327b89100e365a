// Package simulator feeds synthetic furnace telemetry to the backend, either
// directly over REST or through the readings queue.
package simulator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/metrics"
	"carbonseed.io/console/pkg/telemetry"
)

// Config holds the configuration for a Simulator.
type Config struct {
	Logger  *slog.Logger
	Sink    Sink
	Metrics *metrics.SimulatorMetrics

	// DeviceIDs are the numeric backend ids readings are tagged with.
	DeviceIDs []int
	Interval  time.Duration

	// Backfill sends this many historical readings per device, as one
	// batch, before the live loop starts.
	Backfill int

	// Seed makes the generated values reproducible. Zero seeds from time.
	Seed uint64
}

// Simulator runs one generator loop per device.
type Simulator struct {
	logger  *slog.Logger
	sink    Sink
	metrics *metrics.SimulatorMetrics
	cfg     Config
	wg      sync.WaitGroup
}

// New validates cfg and creates a Simulator.
func New(cfg *Config) (*Simulator, error) {
	if cfg == nil {
		return nil, errors.New("simulator config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Sink == nil {
		return nil, errors.New("sink cannot be nil")
	}

	if len(cfg.DeviceIDs) == 0 {
		return nil, errors.New("at least one device id is required")
	}

	if cfg.Interval <= 0 {
		return nil, errors.New("interval must be greater than 0")
	}

	if cfg.Backfill < 0 {
		return nil, errors.New("backfill cannot be negative")
	}

	return &Simulator{
		logger:  cfg.Logger,
		sink:    cfg.Sink,
		metrics: cfg.Metrics,
		cfg:     *cfg,
	}, nil
}

// Run starts the device loops and blocks until ctx ends or the process is
// signalled. The sink is closed before Run returns.
func (s *Simulator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for _, id := range s.cfg.DeviceIDs {
		s.wg.Add(1)
		go s.runDevice(ctx, id)
	}

	s.logger.Info("simulator started",
		"sink", s.sink.Name(),
		"devices", len(s.cfg.DeviceIDs),
		"interval", s.cfg.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.wg.Wait()

	if err := s.sink.Close(); err != nil {
		s.logger.Error("failed to close sink", "error", err)
		return err
	}
	s.logger.Info("simulator stopped")
	return nil
}

func (s *Simulator) runDevice(ctx context.Context, deviceID int) {
	defer s.wg.Done()

	if s.metrics != nil {
		s.metrics.ActiveDeviceLoops.Inc()
		defer s.metrics.ActiveDeviceLoops.Dec()
	}

	var seed uint64
	if s.cfg.Seed != 0 {
		seed = s.cfg.Seed + uint64(max(deviceID, 0))
	}
	gen := telemetry.NewGenerator(deviceID, seed)
	log := s.logger.With("device_id", deviceID)

	if s.cfg.Backfill > 0 {
		history := gen.Series(time.Now().UTC(), s.cfg.Backfill, s.cfg.Interval)
		if err := s.deliver(ctx, history); err != nil {
			log.Error("failed to send backfill", "readings", len(history), "error", err)
		} else {
			log.Info("backfill sent", "readings", len(history))
		}
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("device loop stopped")
			return
		case t := <-ticker.C:
			reading := gen.Reading(t.UTC())
			if err := s.deliver(ctx, []api.Reading{reading}); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error("failed to send reading", "error", err)
				continue
			}
			log.Debug("reading sent", "temperature", *reading.Temperature)
		}
	}
}

func (s *Simulator) deliver(ctx context.Context, readings []api.Reading) error {
	sink := s.sink.Name()
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.DeliveryDuration.WithLabelValues(sink))
		defer timer.ObserveDuration()
	}

	if err := s.sink.Send(ctx, readings); err != nil {
		if s.metrics != nil {
			s.metrics.DeliveryFailures.WithLabelValues(sink).Inc()
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.ReadingsGenerated.WithLabelValues(sink).Add(float64(len(readings)))
	}
	return nil
}
