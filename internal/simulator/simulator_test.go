package simulator_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"carbonseed.io/console/internal/simulator"
	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/mq/mock"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]api.Reading
	closed  bool
	err     error
}

func (s *recordingSink) Name() string { return "test" }

func (s *recordingSink) Send(_ context.Context, readings []api.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, readings)
	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) readings() []api.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []api.Reading
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

type fakeBulk struct {
	token    string
	readings []api.Reading
	result   *api.BulkResult
	err      error
}

func (f *fakeBulk) BulkReadings(_ context.Context, token string, readings []api.Reading) (*api.BulkResult, error) {
	f.token, f.readings = token, readings
	return f.result, f.err
}

var _ = Describe("Simulator", func() {
	var (
		logger *slog.Logger
		sink   *recordingSink
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		sink = &recordingSink{}
	})

	Describe("New", func() {
		DescribeTable("should reject invalid configuration",
			func(mutate func(*simulator.Config), msg string) {
				cfg := &simulator.Config{Logger: logger, Sink: sink, DeviceIDs: []int{1}, Interval: time.Second}
				mutate(cfg)
				_, err := simulator.New(cfg)
				Expect(err).To(MatchError(msg))
			},
			Entry("no logger", func(c *simulator.Config) { c.Logger = nil }, "logger cannot be nil"),
			Entry("no sink", func(c *simulator.Config) { c.Sink = nil }, "sink cannot be nil"),
			Entry("no devices", func(c *simulator.Config) { c.DeviceIDs = nil }, "at least one device id is required"),
			Entry("zero interval", func(c *simulator.Config) { c.Interval = 0 }, "interval must be greater than 0"),
			Entry("negative backfill", func(c *simulator.Config) { c.Backfill = -1 }, "backfill cannot be negative"),
		)

		It("should return error when config is nil", func() {
			_, err := simulator.New(nil)
			Expect(err).To(MatchError("simulator config cannot be nil"))
		})
	})

	Describe("Run", func() {
		It("sends readings for every device until canceled", func() {
			sim, err := simulator.New(&simulator.Config{
				Logger:    logger,
				Sink:      sink,
				DeviceIDs: []int{1, 2},
				Interval:  10 * time.Millisecond,
				Seed:      42,
			})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- sim.Run(ctx) }()

			Eventually(func() map[int]bool {
				seen := map[int]bool{}
				for _, r := range sink.readings() {
					seen[r.DeviceID] = true
				}
				return seen
			}, 2*time.Second, 10*time.Millisecond).Should(And(HaveKey(1), HaveKey(2)))

			cancel()
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))

			sink.mu.Lock()
			defer sink.mu.Unlock()
			Expect(sink.closed).To(BeTrue())
		})

		It("sends the backfill as one batch first", func() {
			sim, err := simulator.New(&simulator.Config{
				Logger:    logger,
				Sink:      sink,
				DeviceIDs: []int{7},
				Interval:  time.Hour,
				Backfill:  12,
			})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = sim.Run(ctx) }()

			Eventually(sink.readings, 2*time.Second).Should(HaveLen(12))
			sink.mu.Lock()
			Expect(sink.batches).To(HaveLen(1))
			sink.mu.Unlock()
		})

		It("keeps running when the sink fails", func() {
			sink.err = errors.New("backend down")
			sim, err := simulator.New(&simulator.Config{
				Logger:    logger,
				Sink:      sink,
				DeviceIDs: []int{1},
				Interval:  5 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = sim.Run(ctx) }()

			Eventually(func() int { return len(sink.readings()) }, 2*time.Second).Should(BeNumerically(">=", 3))
		})
	})
})

var _ = Describe("Sinks", func() {
	reading := api.Reading{DeviceID: 4, Temperature: api.Float(851.2), GasIndex: api.Float(240)}

	Describe("HTTPSink", func() {
		It("posts readings with the service token", func() {
			poster := &fakeBulk{result: &api.BulkResult{Status: "success", Created: 1}}
			sink, err := simulator.NewHTTPSink(poster, "svc-token")
			Expect(err).NotTo(HaveOccurred())

			Expect(sink.Send(context.Background(), []api.Reading{reading})).To(Succeed())
			Expect(poster.token).To(Equal("svc-token"))
			Expect(poster.readings).To(HaveLen(1))
		})

		It("reports records the backend rejected", func() {
			poster := &fakeBulk{result: &api.BulkResult{Errors: []string{"Device 4 not found"}}}
			sink, _ := simulator.NewHTTPSink(poster, "t")

			err := sink.Send(context.Background(), []api.Reading{reading})
			Expect(err).To(MatchError(ContainSubstring("Device 4 not found")))
		})
	})

	Describe("QueueSink", func() {
		It("publishes one JSON message per reading", func() {
			client := mock.NewMockClient()
			sink, err := simulator.NewQueueSink(client)
			Expect(err).NotTo(HaveOccurred())

			Expect(sink.Send(context.Background(), []api.Reading{reading, reading})).To(Succeed())

			msgs := client.Messages()
			Expect(msgs).To(HaveLen(2))
			var got api.Reading
			Expect(json.Unmarshal(msgs[0], &got)).To(Succeed())
			Expect(got.DeviceID).To(Equal(4))
			Expect(*got.Temperature).To(BeNumerically("==", 851.2))

			Expect(sink.Close()).To(Succeed())
			Expect(client.CloseCalls).To(Equal(1))
		})

		It("stops at the first publish failure", func() {
			client := mock.NewMockClient()
			client.PublishError = errors.New("broker down")
			sink, _ := simulator.NewQueueSink(client)

			err := sink.Send(context.Background(), []api.Reading{reading, reading})
			Expect(err).To(MatchError(ContainSubstring("broker down")))
			Expect(client.Messages()).To(BeEmpty())
		})
	})
})
