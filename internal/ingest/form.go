package ingest

import (
	"encoding/json"
	"fmt"
)

// Tone colours a status message.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

// Outcome classifies a submission for metrics and the audit log.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeEmpty      Outcome = "empty"
	OutcomeValidation Outcome = "validation"
	OutcomeRejected   Outcome = "rejected"
	OutcomeDemo       Outcome = "demo"
	OutcomeFailed     Outcome = "failed"
)

// Status messages.
const (
	MsgInvalidFile = "Invalid JSON file"
	MsgEmpty       = "Please enter or upload JSON data"
	MsgFailed      = "Upload failed"
	MsgUnreachable = "Upload failed: backend unreachable"
)

// Status is the feedback shown under the upload panel. The zero value
// shows nothing.
type Status struct {
	Tone    Tone
	Message string
	Outcome Outcome
	Errors  []string
	Created int
	// Demo marks a success that was fabricated because the backend could
	// not be reached.
	Demo bool
}

// Shown reports whether there is anything to display.
func (s Status) Shown() bool {
	return s.Message != ""
}

func errorStatus(outcome Outcome, msg string) Status {
	return Status{Tone: ToneError, Message: msg, Outcome: outcome}
}

// Form is the pending submission of the upload panel.
type Form struct {
	Kind   Kind   `schema:"kind"`
	Buffer string `schema:"json"`
	Status Status `schema:"-"`
}

// SelectFile loads a chosen file into the buffer. Malformed content leaves
// the buffer as it was and sets an error status.
func (f *Form) SelectFile(content []byte) {
	if !json.Valid(content) {
		f.Status = errorStatus(OutcomeValidation, MsgInvalidFile)
		return
	}
	f.Buffer = string(content)
	f.Status = Status{}
}

// SyntaxError describes malformed JSON with its position.
func SyntaxError(buf []byte) error {
	var v any
	err := json.Unmarshal(buf, &v)
	if err == nil {
		return nil
	}
	if se, ok := err.(*json.SyntaxError); ok {
		line, col := position(buf, se.Offset)
		return fmt.Errorf("invalid JSON at line %d, column %d: %w", line, col, err)
	}
	return fmt.Errorf("invalid JSON: %w", err)
}

func position(buf []byte, offset int64) (line, col int) {
	line, col = 1, 1
	for i := int64(0); i < offset-1 && i < int64(len(buf)); i++ {
		if buf[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
