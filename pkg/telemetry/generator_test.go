package telemetry_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"carbonseed.io/console/pkg/telemetry"
)

var _ = Describe("Generator", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	})

	It("should tag readings with the device id and time", func() {
		g := telemetry.NewGenerator(7, 42)
		r := g.Reading(now)

		Expect(r.DeviceID).To(Equal(7))
		Expect(r.Timestamp.Time).To(BeTemporally("==", now))
		Expect(r.Temperature).NotTo(BeNil())
		Expect(r.GasIndex).NotTo(BeNil())
		Expect(r.VibrationX).NotTo(BeNil())
		Expect(r.VibrationY).NotTo(BeNil())
		Expect(r.VibrationZ).NotTo(BeNil())
		Expect(r.Humidity).NotTo(BeNil())
		Expect(r.Pressure).NotTo(BeNil())
		Expect(r.PowerConsumption).NotTo(BeNil())
	})

	It("should stay within plausible industrial ranges", func() {
		g := telemetry.NewGenerator(1, 99)
		for i := range 500 {
			r := g.Reading(now.Add(time.Duration(i) * time.Minute))
			Expect(*r.Temperature).To(BeNumerically(">", 700))
			Expect(*r.Temperature).To(BeNumerically("<", 1050))
			Expect(*r.GasIndex).To(BeNumerically(">=", 0))
			Expect(*r.VibrationX).To(BeNumerically(">=", 0))
			Expect(*r.Humidity).To(BeNumerically(">=", 15))
			Expect(*r.Humidity).To(BeNumerically("<=", 90))
			Expect(*r.Pressure).To(BeNumerically(">=", 980))
			Expect(*r.Pressure).To(BeNumerically("<=", 1040))
			Expect(*r.PowerConsumption).To(BeNumerically(">=", 0))
		}
	})

	It("should be deterministic for a fixed seed", func() {
		a := telemetry.NewGenerator(3, 1234).Reading(now)
		b := telemetry.NewGenerator(3, 1234).Reading(now)
		Expect(*a.Temperature).To(Equal(*b.Temperature))
		Expect(*a.GasIndex).To(Equal(*b.GasIndex))
	})

	Describe("Series", func() {
		It("should return n readings ending at end, oldest first", func() {
			series := telemetry.NewGenerator(2, 5).Series(now, 20, 5*time.Minute)

			Expect(series).To(HaveLen(20))
			Expect(series[0].Timestamp.Time).To(BeTemporally("==", now.Add(-95*time.Minute)))
			Expect(series[19].Timestamp.Time).To(BeTemporally("==", now))
			for i := 1; i < len(series); i++ {
				Expect(series[i].Timestamp.After(series[i-1].Timestamp.Time)).To(BeTrue())
			}
		})

		It("should return nothing for a non-positive count", func() {
			Expect(telemetry.NewGenerator(2, 5).Series(now, 0, time.Minute)).To(BeEmpty())
		})
	})
})

var _ = Describe("Devices", func() {
	It("should generate sequential ids for one factory", func() {
		records := telemetry.Devices("SIM", 2, 3, 7)

		Expect(records).To(HaveLen(3))
		Expect(records[0].DeviceID).To(Equal("ESP32-SIM-001"))
		Expect(records[2].DeviceID).To(Equal("ESP32-SIM-003"))
		for _, r := range records {
			Expect(r.FactoryID).To(Equal(2))
			Expect(r.DeviceName).NotTo(BeEmpty())
			Expect(r.Location).To(HavePrefix("Floor "))
		}
	})
})
