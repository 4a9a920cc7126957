// Package upload tracks one audio upload from the moment it is issued until
// the backend reports success or failure.
package upload

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/format"
)

// Stage is the processing stage of an upload.
type Stage int

const (
	Idle Stage = iota
	Uploading
	Transcribing
	Identifying
	Persisting
	Done
	Failed
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Transcribing:
		return "transcribing"
	case Identifying:
		return "identifying"
	case Persisting:
		return "persisting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool { return s == Done || s == Failed }

// ErrTerminal is returned when a finished session is driven again.
var ErrTerminal = errors.New("upload session already finished")

// ErrNotIdle is returned by Begin on a session that was already started.
var ErrNotIdle = errors.New("upload session already started")

// Options tune the cosmetic progress messages.
type Options struct {
	// Heartbeat is how often a waiting caller should call Tick.
	Heartbeat time.Duration
	// StillEvery spaces the "Still processing" lines.
	StillEvery time.Duration
	// HintAfter and HintEvery control the long-recording hint.
	HintAfter time.Duration
	HintEvery time.Duration
	// IdentifyAfter is how long after the body was sent the display moves
	// from transcribing to identifying when the server reports nothing.
	IdentifyAfter time.Duration
	// Reveal spaces queued log lines.
	Reveal time.Duration
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		Heartbeat:     5 * time.Second,
		StillEvery:    20 * time.Second,
		HintAfter:     180 * time.Second,
		HintEvery:     60 * time.Second,
		IdentifyAfter: 60 * time.Second,
		Reveal:        50 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Heartbeat <= 0 {
		o.Heartbeat = d.Heartbeat
	}
	if o.StillEvery <= 0 {
		o.StillEvery = d.StillEvery
	}
	if o.HintAfter <= 0 {
		o.HintAfter = d.HintAfter
	}
	if o.HintEvery <= 0 {
		o.HintEvery = d.HintEvery
	}
	if o.IdentifyAfter <= 0 {
		o.IdentifyAfter = d.IdentifyAfter
	}
	if o.Reveal < 0 {
		o.Reveal = 0
	}
	return o
}

// StageChange records one transition.
type StageChange struct {
	Stage Stage
	At    time.Time
}

// Session is the client-side record of one upload. It is owned by a single
// goroutine; the request itself runs elsewhere and reports back through
// Controller events.
type Session struct {
	ID        string
	FileName  string
	Size      int64
	Stage     Stage
	StartedAt time.Time
	SentAt    time.Time
	EndedAt   time.Time
	History   []StageChange
	Result    api.UploadResult
	Err       error
	Detached  bool

	opts       Options
	lines      []string
	pending    []string
	nextReveal time.Time
	lastStill  time.Time
	lastHint   time.Time
}

// NewSession returns an idle session for fileName.
func NewSession(fileName string, size int64, opts Options) *Session {
	return &Session{
		ID:       uuid.NewString(),
		FileName: fileName,
		Size:     size,
		Stage:    Idle,
		opts:     opts.withDefaults(),
	}
}

// LogLines returns the revealed log lines in order.
func (s *Session) LogLines() []string {
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Pending reports how many queued lines are not yet revealed.
func (s *Session) Pending() int { return len(s.pending) }

// Elapsed is the time since Begin, frozen once the session ends.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if !s.EndedAt.IsZero() {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// Begin marks the upload request as issued.
func (s *Session) Begin(now time.Time) error {
	if s.Stage != Idle {
		return ErrNotIdle
	}
	s.StartedAt = now
	s.lastStill = now
	s.transition(Uploading, now)
	size := ""
	if s.Size > 0 {
		size = " (" + format.Bytes(s.Size) + ")"
	}
	s.queue(now, fmt.Sprintf("Uploading %s%s...", s.FileName, size))
	return nil
}

// Sent records that the request body has been fully written. It reports
// whether the session changed.
func (s *Session) Sent(now time.Time) bool {
	if s.Stage != Uploading {
		return false
	}
	s.SentAt = now
	s.transition(Transcribing, now)
	s.queue(now, "Upload finished. Transcribing audio...")
	return true
}

// Tick advances the cosmetic progress display. It never ends the session and
// does nothing once the session is detached or finished.
func (s *Session) Tick(now time.Time) bool {
	if s.Detached || s.Stage.Terminal() || s.Stage == Idle {
		return false
	}
	changed := false
	if s.Stage == Transcribing && !s.SentAt.IsZero() && now.Sub(s.SentAt) >= s.opts.IdentifyAfter {
		s.transition(Identifying, now)
		s.queue(now, "Identifying speakers...")
		changed = true
	}
	elapsed := now.Sub(s.StartedAt)
	if now.Sub(s.lastStill) >= s.opts.StillEvery {
		s.lastStill = now
		s.queue(now, fmt.Sprintf("Still processing... (%s elapsed)", format.Elapsed(elapsed)))
		changed = true
	}
	if elapsed >= s.opts.HintAfter && (s.lastHint.IsZero() || now.Sub(s.lastHint) >= s.opts.HintEvery) {
		s.lastHint = now
		s.queue(now, "Transcription may take several minutes for longer audio files.")
		changed = true
	}
	if s.RevealNext(now) {
		changed = true
	}
	return changed
}

// Complete records the server's success reply. Stage markers in the reply
// logs are replayed before the session reaches Done.
func (s *Session) Complete(result api.UploadResult, now time.Time) error {
	if s.Stage.Terminal() {
		return ErrTerminal
	}
	s.Result = result
	for _, line := range result.Logs {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if st, ok := stageMarker(line); ok && st > s.Stage {
			s.transition(st, now)
		}
		s.queue(now, line)
	}
	msg := strings.TrimSpace(result.Message)
	if msg == "" {
		msg = "Conversation processed."
	}
	s.queue(now, "Done: "+msg)
	s.EndedAt = now
	s.transition(Done, now)
	return nil
}

// Fail records a failed upload. The diagnostic line is revealed at once,
// after anything still queued.
func (s *Session) Fail(err error, now time.Time) error {
	if s.Stage.Terminal() {
		return ErrTerminal
	}
	s.Err = err
	s.EndedAt = now
	s.transition(Failed, now)
	s.lines = append(s.lines, s.pending...)
	s.pending = nil
	s.lines = append(s.lines, diagnostic(err))
	return nil
}

// RevealNext moves the next queued line into the log when its reveal time
// has come. Detached sessions only reveal once finished.
func (s *Session) RevealNext(now time.Time) bool {
	if len(s.pending) == 0 || now.Before(s.nextReveal) {
		return false
	}
	if s.Detached && !s.Stage.Terminal() {
		return false
	}
	s.lines = append(s.lines, s.pending[0])
	s.pending = s.pending[1:]
	s.nextReveal = now.Add(s.opts.Reveal)
	return true
}

// Flush reveals every queued line.
func (s *Session) Flush() {
	s.lines = append(s.lines, s.pending...)
	s.pending = nil
}

// Detach stops cosmetic updates. The request keeps running and its outcome
// is still recorded by Complete or Fail.
func (s *Session) Detach() { s.Detached = true }

func (s *Session) queue(now time.Time, line string) {
	if len(s.pending) == 0 && !now.Before(s.nextReveal) {
		s.lines = append(s.lines, line)
		s.nextReveal = now.Add(s.opts.Reveal)
		return
	}
	s.pending = append(s.pending, line)
}

func (s *Session) transition(st Stage, now time.Time) {
	s.Stage = st
	s.History = append(s.History, StageChange{Stage: st, At: now})
}

// stageMarker maps a server log line to the stage it announces.
func stageMarker(line string) (Stage, bool) {
	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, "transcrib"):
		return Transcribing, true
	case strings.Contains(l, "identif"), strings.Contains(l, "embedding"), strings.Contains(l, "matching"):
		return Identifying, true
	case strings.Contains(l, "saving"), strings.Contains(l, "database"), strings.Contains(l, "persist"), strings.Contains(l, "storing"):
		return Persisting, true
	}
	return Idle, false
}

func diagnostic(err error) string {
	if err == nil {
		return "Error: upload failed"
	}
	if kind := api.KindOf(err); kind != 0 {
		return fmt.Sprintf("Error (%s): %s", kind, api.Detail(err))
	}
	return "Error: " + err.Error()
}
