package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"carbonseed.io/console/internal/ingest"
	"carbonseed.io/console/pkg/api"
)

type post struct {
	token    string
	endpoint string
	payload  string
}

type fakePoster struct {
	posts  []post
	result *api.BulkResult
	err    error
}

func (f *fakePoster) Bulk(_ context.Context, token, endpoint string, payload json.RawMessage) (*api.BulkResult, error) {
	f.posts = append(f.posts, post{token: token, endpoint: endpoint, payload: string(payload)})
	return f.result, f.err
}

const newDevice = `{"devices":[{"device_id":"ESP32-NEW-001","device_name":"New Sensor","factory_id":1}]}`

var _ = Describe("Kind", func() {
	DescribeTable("Endpoint",
		func(name, endpoint string) {
			k, err := ingest.ParseKind(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(k.Endpoint()).To(Equal(endpoint))
		},
		Entry("devices", "devices", "/devices/bulk"),
		Entry("readings", "readings", "/data/bulk"),
		Entry("alerts", "Alerts", "/alerts/bulk"),
	)

	It("rejects unknown kinds", func() {
		_, err := ingest.ParseKind("factories")
		Expect(err).To(HaveOccurred())
	})

	It("ships a valid example for every kind", func() {
		for _, k := range ingest.Kinds {
			Expect(json.Valid([]byte(k.Example()))).To(BeTrue(), string(k))
		}
	})
})

var _ = Describe("Form", func() {
	Describe("SelectFile", func() {
		It("replaces the buffer with well-formed content", func() {
			form := &ingest.Form{Kind: ingest.KindDevices, Buffer: "old", Status: ingest.Status{Message: "stale"}}
			form.SelectFile([]byte(newDevice))

			Expect(form.Buffer).To(Equal(newDevice))
			Expect(form.Status.Shown()).To(BeFalse())
		})

		It("keeps the buffer when the file is malformed", func() {
			form := &ingest.Form{Kind: ingest.KindDevices, Buffer: "previous"}
			form.SelectFile([]byte(`{"devices": [1, 2,]}`))

			Expect(form.Buffer).To(Equal("previous"))
			Expect(form.Status.Tone).To(Equal(ingest.ToneError))
			Expect(form.Status.Message).To(Equal("Invalid JSON file"))
		})
	})

	It("locates syntax errors", func() {
		err := ingest.SyntaxError([]byte("{\n  \"a\": 1,\n}"))
		Expect(err).To(MatchError(ContainSubstring("line 3")))
		Expect(ingest.SyntaxError([]byte(`{"a":1}`))).To(Succeed())
	})
})

var _ = Describe("Submitter", func() {
	var (
		logger    *slog.Logger
		poster    *fakePoster
		submitter *ingest.Submitter
		ctx       context.Context
	)

	newSubmitter := func(demo bool) *ingest.Submitter {
		s, err := ingest.NewSubmitter(&ingest.SubmitterConfig{
			Logger:       logger,
			Poster:       poster,
			DemoFallback: demo,
		})
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		poster = &fakePoster{}
		submitter = newSubmitter(true)
		ctx = context.Background()
	})

	Describe("NewSubmitter", func() {
		It("should return error when config is nil", func() {
			_, err := ingest.NewSubmitter(nil)
			Expect(err).To(MatchError("submitter config cannot be nil"))
		})

		It("should return error when poster is nil", func() {
			_, err := ingest.NewSubmitter(&ingest.SubmitterConfig{Logger: logger})
			Expect(err).To(MatchError("poster cannot be nil"))
		})
	})

	It("posts a device upload to the devices endpoint", func() {
		poster.result = &api.BulkResult{Status: "success", Created: 1}
		form := &ingest.Form{Kind: ingest.KindDevices, Buffer: newDevice}

		st := submitter.Submit(ctx, "tok", form)

		Expect(poster.posts).To(HaveLen(1))
		Expect(poster.posts[0].endpoint).To(Equal("/devices/bulk"))
		Expect(poster.posts[0].token).To(Equal("tok"))
		Expect(poster.posts[0].payload).To(MatchJSON(newDevice))
		Expect(st.Tone).To(Equal(ingest.ToneSuccess))
		Expect(st.Message).To(Equal("Successfully uploaded devices data"))
		Expect(st.Created).To(Equal(1))
		Expect(form.Buffer).To(BeEmpty())
	})

	It("compacts the payload", func() {
		form := &ingest.Form{Kind: ingest.KindReadings, Buffer: "{\n  \"readings\": [ ]\n}\n"}
		submitter.Submit(ctx, "tok", form)
		Expect(poster.posts[0].payload).To(Equal(`{"readings":[]}`))
	})

	It("rejects malformed JSON without posting", func() {
		form := &ingest.Form{Kind: ingest.KindDevices, Buffer: `{"devices": [{"device_id": "X"},]}`}

		st := submitter.Submit(ctx, "tok", form)

		Expect(poster.posts).To(BeEmpty())
		Expect(st.Tone).To(Equal(ingest.ToneError))
		Expect(st.Outcome).To(Equal(ingest.OutcomeValidation))
		Expect(form.Buffer).NotTo(BeEmpty())
	})

	It("asks for data when the buffer is blank", func() {
		st := submitter.Submit(ctx, "tok", &ingest.Form{Kind: ingest.KindAlerts, Buffer: "  \n"})

		Expect(poster.posts).To(BeEmpty())
		Expect(st.Message).To(Equal("Please enter or upload JSON data"))
	})

	Context("when the backend rejects the upload", func() {
		It("shows the server detail", func() {
			poster.err = &api.StatusError{Endpoint: "bulk", StatusCode: 400, Detail: "Factory 9 not found"}
			form := &ingest.Form{Kind: ingest.KindDevices, Buffer: newDevice}

			st := submitter.Submit(ctx, "tok", form)

			Expect(st.Tone).To(Equal(ingest.ToneError))
			Expect(st.Message).To(Equal("Factory 9 not found"))
			Expect(form.Buffer).To(Equal(newDevice))
		})

		It("falls back to a generic message", func() {
			poster.err = &api.StatusError{Endpoint: "bulk", StatusCode: 500}
			st := submitter.Submit(ctx, "tok", &ingest.Form{Kind: ingest.KindDevices, Buffer: newDevice})
			Expect(st.Message).To(Equal("Upload failed"))
		})
	})

	Context("when the backend is unreachable", func() {
		BeforeEach(func() {
			poster.err = &api.TransportError{Endpoint: "bulk", Err: errors.New("connection refused")}
		})

		It("reports a demo success", func() {
			form := &ingest.Form{Kind: ingest.KindReadings, Buffer: `{"readings":[]}`}
			st := submitter.Submit(ctx, "tok", form)

			Expect(st.Tone).To(Equal(ingest.ToneSuccess))
			Expect(st.Demo).To(BeTrue())
			Expect(st.Message).To(Equal("[Demo] Successfully processed readings data"))
			Expect(form.Buffer).To(BeEmpty())
		})

		It("reports the failure when demo fallback is off", func() {
			st := newSubmitter(false).Submit(ctx, "tok", &ingest.Form{Kind: ingest.KindReadings, Buffer: `{"readings":[]}`})

			Expect(st.Tone).To(Equal(ingest.ToneError))
			Expect(st.Demo).To(BeFalse())
			Expect(st.Message).To(Equal("Upload failed: backend unreachable"))
		})
	})
})
