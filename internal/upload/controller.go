package upload

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwulff/speakerdash/internal/api"
)

// Uploader is the API call a Controller drives.
type Uploader interface {
	UploadConversation(ctx context.Context, req api.UploadRequest) (api.UploadResult, error)
}

// EventKind identifies a report from the request goroutine.
type EventKind int

const (
	// EventSent means the request body has been fully written.
	EventSent EventKind = iota + 1
	// EventFinished carries the request's outcome. It is always the last
	// event before the channel closes.
	EventFinished
)

// Event is one report from an in-flight upload.
type Event struct {
	Kind   EventKind
	Result api.UploadResult
	Err    error
	At     time.Time
}

// Apply folds ev into s and reports whether s changed.
func (s *Session) Apply(ev Event) bool {
	switch ev.Kind {
	case EventSent:
		return s.Sent(ev.At)
	case EventFinished:
		if ev.Err != nil {
			return s.Fail(ev.Err, ev.At) == nil
		}
		return s.Complete(ev.Result, ev.At) == nil
	}
	return false
}

// Controller issues uploads and feeds their progress into sessions.
type Controller struct {
	client Uploader
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// NewController returns a Controller uploading through client.
func NewController(client Uploader, opts Options, logger zerolog.Logger) *Controller {
	return &Controller{
		client: client,
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Options returns the controller's effective timings.
func (c *Controller) Options() Options { return c.opts }

// Start begins a session and issues the upload on its own goroutine. The
// returned channel yields EventSent (when the body is written) and then
// EventFinished, and is closed afterwards. The request is bound to ctx only;
// detaching the session does not stop it.
func (c *Controller) Start(ctx context.Context, req api.UploadRequest) (*Session, <-chan Event) {
	sess := NewSession(req.FileName, req.Size, c.opts)
	_ = sess.Begin(c.now())

	events := make(chan Event, 2)
	userSent := req.OnSent
	req.OnSent = func() {
		events <- Event{Kind: EventSent, At: c.now()}
		if userSent != nil {
			userSent()
		}
	}

	logger := c.logger.With().Str("session", sess.ID).Str("file", sess.FileName).Logger()
	logger.Info().Int64("size", req.Size).Msg("upload started")

	go func() {
		defer close(events)
		res, err := c.client.UploadConversation(ctx, req)
		if err != nil {
			logger.Warn().Err(err).Msg("upload failed")
		} else {
			logger.Info().Str("conversation_id", res.ConversationID).Msg("upload finished")
		}
		events <- Event{Kind: EventFinished, Result: res, Err: err, At: c.now()}
	}()
	return sess, events
}

// Run uploads req and drives the session to a terminal stage on the calling
// goroutine, calling onChange whenever the session changes. It returns the
// finished session and the upload error, if any.
func (c *Controller) Run(ctx context.Context, req api.UploadRequest, onChange func(*Session)) (*Session, error) {
	sess, events := c.Start(ctx, req)
	notify := func() {
		if onChange != nil {
			onChange(sess)
		}
	}
	notify()

	heartbeat := time.NewTicker(c.opts.Heartbeat)
	defer heartbeat.Stop()
	reveal := c.opts.Reveal
	if reveal <= 0 {
		reveal = time.Millisecond
	}
	revealTicker := time.NewTicker(reveal)
	defer revealTicker.Stop()

	for !sess.Stage.Terminal() {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if sess.Apply(ev) {
				notify()
			}
		case <-heartbeat.C:
			if sess.Tick(c.now()) {
				notify()
			}
		case <-revealTicker.C:
			if sess.RevealNext(c.now()) {
				notify()
			}
		}
	}
	if sess.Pending() > 0 {
		sess.Flush()
		notify()
	}
	return sess, sess.Err
}
