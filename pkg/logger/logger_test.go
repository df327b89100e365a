package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"carbonseed.io/console/pkg/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var entry map[string]any
	Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
	return entry
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("should fall back to defaults for a nil config", func() {
			Expect(logger.New(nil)).NotTo(BeNil())
		})

		It("should write JSON by default", func() {
			buf := &bytes.Buffer{}
			log := logger.New(&logger.Config{Output: buf, Level: slog.LevelInfo})

			log.Info("device online", "device_id", "ESP32-SF-001")

			entry := decodeLine(buf)
			Expect(entry).To(HaveKeyWithValue("msg", "device online"))
			Expect(entry).To(HaveKeyWithValue("device_id", "ESP32-SF-001"))
			Expect(entry).To(HaveKey("time"))
			Expect(entry).To(HaveKey("level"))
		})

		It("should write key=value pairs in text format", func() {
			buf := &bytes.Buffer{}
			log := logger.New(&logger.Config{Output: buf, Format: logger.FormatText})

			log.Info("upload accepted", "kind", "devices")

			Expect(buf.String()).To(ContainSubstring(`msg="upload accepted"`))
			Expect(buf.String()).To(ContainSubstring("kind=devices"))
		})

		It("should include the source when asked", func() {
			buf := &bytes.Buffer{}
			log := logger.New(&logger.Config{Output: buf, AddSource: true})

			log.Info("with source")

			Expect(decodeLine(buf)).To(HaveKey("source"))
		})
	})

	Describe("ParseLevel", func() {
		DescribeTable("should parse level strings",
			func(input string, expected slog.Level) {
				Expect(logger.ParseLevel(input)).To(Equal(expected))
			},
			Entry("debug", "debug", slog.LevelDebug),
			Entry("upper case", "DEBUG", slog.LevelDebug),
			Entry("info", "info", slog.LevelInfo),
			Entry("warn", "warn", slog.LevelWarn),
			Entry("warning", "warning", slog.LevelWarn),
			Entry("error", "error", slog.LevelError),
			Entry("invalid defaults to info", "verbose", slog.LevelInfo),
			Entry("empty defaults to info", "", slog.LevelInfo),
		)
	})

	Describe("ParseFormat", func() {
		DescribeTable("should parse format strings",
			func(input string, expected logger.Format) {
				Expect(logger.ParseFormat(input)).To(Equal(expected))
			},
			Entry("text", "text", logger.FormatText),
			Entry("TEXT", "TEXT", logger.FormatText),
			Entry("json", "json", logger.FormatJSON),
			Entry("unknown", "logfmt", logger.FormatJSON),
		)
	})

	Describe("level filtering", func() {
		DescribeTable("should respect the configured level",
			func(level slog.Level, logFunc func(*slog.Logger), shouldAppear bool) {
				buf := &bytes.Buffer{}
				logFunc(logger.New(&logger.Config{Level: level, Output: buf}))
				Expect(len(strings.TrimSpace(buf.String())) > 0).To(Equal(shouldAppear))
			},
			Entry("debug at debug", slog.LevelDebug, func(l *slog.Logger) { l.Debug("m") }, true),
			Entry("debug at info", slog.LevelInfo, func(l *slog.Logger) { l.Debug("m") }, false),
			Entry("warn at info", slog.LevelInfo, func(l *slog.Logger) { l.Warn("m") }, true),
			Entry("info at error", slog.LevelError, func(l *slog.Logger) { l.Info("m") }, false),
		)
	})

	Describe("WithContext", func() {
		It("should add the attributes to every record", func() {
			buf := &bytes.Buffer{}
			log := logger.WithContext(logger.New(&logger.Config{Output: buf}),
				slog.String("request_id", "req-1"),
				slog.Int("factory_id", 2),
			)

			log.Info("rendered")

			entry := decodeLine(buf)
			Expect(entry).To(HaveKeyWithValue("request_id", "req-1"))
			Expect(entry).To(HaveKeyWithValue("factory_id", float64(2)))
		})
	})

	Describe("Component", func() {
		It("should tag records with the component name", func() {
			buf := &bytes.Buffer{}
			log := logger.Component(logger.New(&logger.Config{Output: buf}), "relay")

			log.Info("started")

			Expect(decodeLine(buf)).To(HaveKeyWithValue("component", "relay"))
		})
	})

	Describe("DefaultConfig", func() {
		It("should default to info level JSON without source", func() {
			cfg := logger.DefaultConfig()
			Expect(cfg.Level).To(Equal(slog.LevelInfo))
			Expect(cfg.Format).To(Equal(logger.FormatJSON))
			Expect(cfg.AddSource).To(BeFalse())
		})
	})
})
