package ingest_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"carbonseed.io/console/internal/ingest"
	"carbonseed.io/console/pkg/api"
)

var _ = Describe("Submitter against the REST client", func() {
	var (
		mux       *http.ServeMux
		backend   *httptest.Server
		submitter *ingest.Submitter
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		mux = http.NewServeMux()
		backend = httptest.NewServer(mux)
		DeferCleanup(backend.Close)

		client, err := api.NewClient(&api.ClientConfig{Logger: logger, BaseURL: backend.URL})
		Expect(err).NotTo(HaveOccurred())

		submitter, err = ingest.NewSubmitter(&ingest.SubmitterConfig{
			Logger:       logger,
			Poster:       client,
			DemoFallback: true,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("shows each validation error of a 422 answer", func() {
		mux.HandleFunc("POST /devices/bulk", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":[{"type":"missing","loc":["body","devices",0,"factory_id"],"msg":"Field required","input":{}}]}`))
		})
		form := &ingest.Form{Kind: ingest.KindDevices, Buffer: `{"devices":[{"device_id":"ESP32-NEW-001"}]}`}

		st := submitter.Submit(context.Background(), "tok", form)

		Expect(st.Tone).To(Equal(ingest.ToneError))
		Expect(st.Outcome).To(Equal(ingest.OutcomeRejected))
		Expect(st.Message).To(Equal("body.devices.0.factory_id: Field required"))
		Expect(form.Buffer).NotTo(BeEmpty())
	})

	It("reports success when an accepted upload answers with an unexpected body", func() {
		mux.HandleFunc("POST /alerts/bulk", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>ok</html>`))
		})

		st := submitter.Submit(context.Background(), "tok", &ingest.Form{Kind: ingest.KindAlerts, Buffer: `{"alerts":[]}`})

		Expect(st.Tone).To(Equal(ingest.ToneSuccess))
		Expect(st.Outcome).To(Equal(ingest.OutcomeSuccess))
		Expect(st.Demo).To(BeFalse())
		Expect(st.Created).To(BeZero())
	})
})
