package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/metrics"
)

// Poster sends a bulk payload to the backend.
type Poster interface {
	Bulk(ctx context.Context, token, endpoint string, payload json.RawMessage) (*api.BulkResult, error)
}

var _ Poster = (*api.Client)(nil)

// SubmitterConfig holds the configuration for a Submitter.
type SubmitterConfig struct {
	Logger  *slog.Logger
	Poster  Poster
	Metrics *metrics.ConsoleMetrics

	// DemoFallback turns an unreachable backend into a fabricated success
	// marked as demo.
	DemoFallback bool
}

// Submitter posts upload forms.
type Submitter struct {
	logger       *slog.Logger
	poster       Poster
	metrics      *metrics.ConsoleMetrics
	demoFallback bool
}

// NewSubmitter creates a Submitter.
func NewSubmitter(cfg *SubmitterConfig) (*Submitter, error) {
	if cfg == nil {
		return nil, errors.New("submitter config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Poster == nil {
		return nil, errors.New("poster cannot be nil")
	}

	return &Submitter{
		logger:       cfg.Logger,
		poster:       cfg.Poster,
		metrics:      cfg.Metrics,
		demoFallback: cfg.DemoFallback,
	}, nil
}

// Submit validates the buffer and posts it to the endpoint of the form's
// kind. The form's status is updated and returned; on success the buffer is
// cleared. Malformed JSON is never posted.
func (s *Submitter) Submit(ctx context.Context, token string, form *Form) Status {
	form.Status = s.submit(ctx, token, form)
	if form.Status.Tone == ToneSuccess {
		form.Buffer = ""
	}
	s.observe(form.Kind, form.Status.Outcome)
	return form.Status
}

func (s *Submitter) submit(ctx context.Context, token string, form *Form) Status {
	endpoint := form.Kind.Endpoint()
	if endpoint == "" {
		return errorStatus(OutcomeValidation, fmt.Sprintf("Unknown data type %q", form.Kind))
	}

	raw := strings.TrimSpace(form.Buffer)
	if raw == "" {
		return errorStatus(OutcomeEmpty, MsgEmpty)
	}

	if err := SyntaxError([]byte(raw)); err != nil {
		return errorStatus(OutcomeValidation, err.Error())
	}

	var payload bytes.Buffer
	if err := json.Compact(&payload, []byte(raw)); err != nil {
		return errorStatus(OutcomeValidation, err.Error())
	}

	result, err := s.poster.Bulk(ctx, token, endpoint, payload.Bytes())
	switch {
	case err == nil:
		st := Status{
			Tone:    ToneSuccess,
			Outcome: OutcomeSuccess,
			Message: fmt.Sprintf("Successfully uploaded %s data", form.Kind),
		}
		if result != nil {
			st.Created = result.Created
			st.Errors = result.Errors
		}
		s.logger.Info("bulk upload accepted", "kind", string(form.Kind), "created", st.Created, "errors", len(st.Errors))
		return st

	case api.IsTransport(err):
		if !s.demoFallback {
			s.logger.Error("bulk upload failed", "kind", string(form.Kind), "error", err)
			return errorStatus(OutcomeFailed, MsgUnreachable)
		}
		s.logger.Warn("backend unreachable, reporting demo success", "kind", string(form.Kind), "error", err)
		return Status{
			Tone:    ToneSuccess,
			Outcome: OutcomeDemo,
			Message: fmt.Sprintf("[Demo] Successfully processed %s data", form.Kind),
			Demo:    true,
		}

	default:
		s.logger.Info("bulk upload rejected", "kind", string(form.Kind), "error", err)
		msg := api.Detail(err)
		if msg == "" {
			msg = MsgFailed
		}
		return errorStatus(OutcomeRejected, msg)
	}
}

func (s *Submitter) observe(kind Kind, outcome Outcome) {
	if s.metrics == nil {
		return
	}
	s.metrics.UploadOutcomes.WithLabelValues(string(kind), string(outcome)).Inc()
}
