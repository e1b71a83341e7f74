package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"mixtape/internal/config"
)

// Event names a batch milestone.
type Event string

const (
	EventBatchStarted   Event = "batch_started"
	EventJobFinished    Event = "job_finished"
	EventBatchCompleted Event = "batch_completed"
	EventTest           Event = "test"
)

// Message is the transport-neutral body of a notification.
type Message struct {
	Event   Event  `json:"event"`
	BatchID string `json:"batch_id,omitempty"`
	// Job is the 1-based job index for job events.
	Job    int    `json:"job,omitempty"`
	Status string `json:"status,omitempty"`
	Stage  string `json:"stage,omitempty"`
	Output string `json:"output,omitempty"`
	Detail string `json:"detail,omitempty"`
	// Requested is the number of videos asked for on batch_started.
	Requested      int       `json:"requested,omitempty"`
	Done           int       `json:"done,omitempty"`
	Failed         int       `json:"failed,omitempty"`
	Cancelled      int       `json:"cancelled,omitempty"`
	ElapsedSeconds float64   `json:"elapsed_seconds,omitempty"`
	Time           time.Time `json:"time"`
}

// Service delivers messages.
type Service interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NewService builds the notifier described by cfg: ntfy when a topic is
// set, redis when an address is set, both when both are.
func NewService(cfg *config.Config) Service {
	var services []Service
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		services = append(services, newNtfyService(topic, timeout))
	}
	if addr := strings.TrimSpace(cfg.Notifications.RedisAddr); addr != "" {
		services = append(services, newRedisService(cfg.Notifications))
	}
	switch len(services) {
	case 0:
		return noopService{}
	case 1:
		return services[0]
	default:
		return fanout(services)
	}
}

type fanout []Service

func (f fanout) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, svc := range f {
		if err := svc.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) Close() error {
	var errs []error
	for _, svc := range f {
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Message) error { return nil }
func (noopService) Close() error                           { return nil }
