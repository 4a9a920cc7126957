package view

import (
	"time"

	"github.com/jwulff/speakerdash/internal/format"
	"github.com/jwulff/speakerdash/internal/upload"
)

// StepState is the display state of one processing step.
type StepState int

const (
	StepPending StepState = iota
	StepActive
	StepDone
	StepFailed
)

// Step is one entry of the upload progress checklist.
type Step struct {
	Label string
	State StepState
}

// UploadStatus describes an upload session for display.
type UploadStatus struct {
	File           string
	Size           string
	Stage          string
	Steps          []Step
	Lines          []string
	Elapsed        string
	Finished       bool
	Failed         bool
	Detached       bool
	ConversationID string
}

var uploadSteps = []struct {
	stage upload.Stage
	label string
}{
	{upload.Uploading, "Upload"},
	{upload.Transcribing, "Transcribe"},
	{upload.Identifying, "Identify speakers"},
	{upload.Persisting, "Save"},
}

// UploadPanel describes sess as of now. A nil session yields the idle panel.
func UploadPanel(sess *upload.Session, now time.Time) UploadStatus {
	if sess == nil {
		return UploadStatus{Stage: upload.Idle.String(), Steps: steps(upload.Idle, upload.Idle)}
	}
	reached := upload.Idle
	for _, h := range sess.History {
		if h.Stage < upload.Done && h.Stage > reached {
			reached = h.Stage
		}
	}
	return UploadStatus{
		File:           sess.FileName,
		Size:           format.Bytes(sess.Size),
		Stage:          sess.Stage.String(),
		Steps:          steps(sess.Stage, reached),
		Lines:          sess.LogLines(),
		Elapsed:        format.Elapsed(sess.Elapsed(now)),
		Finished:       sess.Stage.Terminal(),
		Failed:         sess.Stage == upload.Failed,
		Detached:       sess.Detached,
		ConversationID: sess.Result.ConversationID,
	}
}

// steps marks everything before reached as done. On failure the furthest
// reached step is the failed one.
func steps(current, reached upload.Stage) []Step {
	out := make([]Step, len(uploadSteps))
	for i, s := range uploadSteps {
		out[i].Label = s.label
		switch {
		case current == upload.Done:
			out[i].State = StepDone
		case s.stage < reached:
			out[i].State = StepDone
		case s.stage == reached && current == upload.Failed:
			out[i].State = StepFailed
		case s.stage == reached:
			out[i].State = StepActive
		}
	}
	return out
}
