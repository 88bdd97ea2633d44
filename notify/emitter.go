// Package notify delivers in-app notifications and email jobs off the
// request path. Emission is fire-and-forget: the board never blocks on,
// retries, or inspects the result of a notification.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Store persists notifications and hands email jobs to the outbound queue.
type Store interface {
	InsertNotification(ctx context.Context, n domain.Notification) error
	EnqueueEmail(ctx context.Context, msg domain.EmailMessage) error
}

// Directory resolves recipient ids to addresses.
type Directory interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Config tunes the emitter's worker pool.
type Config struct {
	Workers int
	Buffer  int
	// Timeout bounds the persistence work of one job.
	Timeout time.Duration
	// Handoff is how long Emit waits on a saturated buffer before dropping.
	Handoff time.Duration
}

// Emitter fans notification jobs out to background workers. A saturated
// buffer drops the job with a warning; losing a notice is preferable to
// stalling a board mutation.
type Emitter struct {
	store     Store
	directory Directory
	log       *log.Logger

	timeout time.Duration
	handoff time.Duration

	jobs chan domain.Notification
	wg   sync.WaitGroup
}

// NewEmitter starts the worker pool.
func NewEmitter(store Store, directory Directory, logger *log.Logger, cfg Config) *Emitter {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Handoff < 0 {
		cfg.Handoff = 0
	}
	e := &Emitter{
		store:     store,
		directory: directory,
		log:       logger,
		timeout:   cfg.Timeout,
		handoff:   cfg.Handoff,
		jobs:      make(chan domain.Notification, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	logger.Infof("notification emitter started, workers: %d, buffer: %d", cfg.Workers, cfg.Buffer)
	return e
}

// Emit queues one notification. Missing id and timestamp are filled in.
// Never blocks longer than the configured handoff.
func (e *Emitter) Emit(n domain.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	select {
	case e.jobs <- n:
		return
	default:
	}
	if e.handoff > 0 {
		timer := time.NewTimer(e.handoff)
		defer timer.Stop()
		select {
		case e.jobs <- n:
			return
		case <-timer.C:
		}
	}
	e.log.WithFields(log.Fields{"recipient": n.Recipient, "kind": n.Kind}).
		Warn("notification buffer saturated, dropped")
}

// Close stops accepting jobs and waits for in-flight ones to settle.
func (e *Emitter) Close() {
	close(e.jobs)
	e.wg.Wait()
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for n := range e.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		e.deliver(ctx, n)
		cancel()
	}
}

func (e *Emitter) deliver(ctx context.Context, n domain.Notification) {
	if err := e.store.InsertNotification(ctx, n); err != nil {
		e.log.Errorf("persist notification failed, err: %v, recipient: %s, kind: %s", err, n.Recipient, n.Kind)
		return
	}

	user, err := e.directory.GetUser(ctx, n.Recipient)
	if err != nil {
		e.log.Errorf("recipient lookup failed, err: %v, recipient: %s", err, n.Recipient)
		return
	}
	if user.Email == "" {
		return
	}
	msg := domain.EmailMessage{
		To:      user.Email,
		Subject: subjectFor(n.Kind),
		Body:    "Hello " + user.Name + ",\n\n" + n.Message,
	}
	if err := e.store.EnqueueEmail(ctx, msg); err != nil {
		e.log.Errorf("email enqueue failed, err: %v, recipient: %s", err, n.Recipient)
	}
}

func subjectFor(kind string) string {
	switch kind {
	case domain.NotificationAssignment:
		return "New task assignment"
	case domain.NotificationComment:
		return "New comment on your task"
	case domain.NotificationInvite:
		return "Project invitation"
	}
	return "Notification"
}
