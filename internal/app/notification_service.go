// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/domain/notification"
	"pastoral_care_worker/internal/infra/clock"
)

var (
	ErrNoGateway      = errors.New("no gateway configured for channel")
	ErrNoRecipient    = errors.New("notification recipient is empty")
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// NotificationService sends one outbound message and records every attempt.
type NotificationService interface {
	Send(ctx context.Context, req Request) (*notification.Log, error)
	HasChannel(ch notification.Channel) bool
	Recent(ctx context.Context, campusID string, limit int) ([]*notification.Log, error)
	Get(ctx context.Context, campusID, id string) (*notification.Log, error)
}

// Request describes one outbound message.
type Request struct {
	CampusID    string
	MemberID    string
	RecipientID string
	Channel     notification.Channel
	Type        notification.MessageType
	Recipient   string
	Message     string
}

// RetryPolicy bounds delivery attempts. Delays[i] is slept before attempt
// i+2; the last delay repeats if MaxAttempts outruns the list.
type RetryPolicy struct {
	MaxAttempts    int
	Delays         []time.Duration
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Delays:         []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
		AttemptTimeout: 15 * time.Second,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if len(p.Delays) == 0 || attempt < 2 {
		return 0
	}
	i := attempt - 2
	if i >= len(p.Delays) {
		i = len(p.Delays) - 1
	}
	return p.Delays[i]
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	logs     notification.Repository
	gateways map[notification.Channel]notification.Gateway
	policy   RetryPolicy
	clock    clock.Source
	logger   *logrus.Entry
}

func NewNotificationServiceImpl(
	logs notification.Repository,
	gateways []notification.Gateway,
	policy RetryPolicy,
	clk clock.Source,
	logger *logrus.Entry,
) *NotificationServiceImpl {
	byChannel := make(map[notification.Channel]notification.Gateway, len(gateways))
	for _, g := range gateways {
		if g != nil {
			byChannel[g.Channel()] = g
		}
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &NotificationServiceImpl{
		logs:     logs,
		gateways: byChannel,
		policy:   policy,
		clock:    clk,
		logger:   logger,
	}
}

func (s *NotificationServiceImpl) HasChannel(ch notification.Channel) bool {
	_, ok := s.gateways[ch]
	return ok
}

// Recent returns the campus's newest logs first.
func (s *NotificationServiceImpl) Recent(ctx context.Context, campusID string, limit int) ([]*notification.Log, error) {
	logs, err := s.logs.ListRecent(ctx, campusID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}
	return logs, nil
}

func (s *NotificationServiceImpl) Get(ctx context.Context, campusID, id string) (*notification.Log, error) {
	l, err := s.logs.GetByID(ctx, campusID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification log %s: %w", id, err)
	}
	return l, nil
}

// Send records a pending log, then tries the gateway up to MaxAttempts
// times. The returned log carries the terminal status. A message that
// exhausts its attempts is marked failed and not retried later.
func (s *NotificationServiceImpl) Send(ctx context.Context, req Request) (*notification.Log, error) {
	if strings.TrimSpace(req.Recipient) == "" {
		return nil, ErrNoRecipient
	}
	gateway, ok := s.gateways[req.Channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGateway, req.Channel)
	}

	entry := &notification.Log{
		CampusID:    req.CampusID,
		MemberID:    req.MemberID,
		RecipientID: req.RecipientID,
		Channel:     req.Channel,
		MessageType: req.Type,
		Recipient:   req.Recipient,
		Message:     req.Message,
		Status:      notification.StatusPending,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create notification log: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"campus_id":       req.CampusID,
		"notification_id": entry.ID,
		"channel":         req.Channel,
		"type":            req.Type,
	})

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if d := s.policy.delay(attempt); d > 0 {
			if err := sleepCtx(ctx, d); err != nil {
				lastErr = err
				break
			}
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		n, err := s.logs.IncrementAttempts(ctx, entry.ID)
		if err != nil {
			log.WithError(err).Warn("Failed to record notification attempt")
			n = attempt
		}
		entry.Attempts = n

		lastErr = s.deliver(ctx, gateway, req.Recipient, req.Message)
		if lastErr == nil {
			now := s.clock.Now()
			if err := s.logs.MarkSent(ctx, entry.ID, now); err != nil {
				log.WithError(err).Error("Message delivered but log could not be marked sent")
			}
			entry.Status = notification.StatusSent
			entry.SentAt = &now
			entry.LastError = ""
			log.WithField("attempt", attempt).Info("Notification sent")
			return entry, nil
		}
		log.WithError(lastErr).WithField("attempt", attempt).Warn("Notification attempt failed")
	}

	now := s.clock.Now()
	// The caller's context may already be done; the terminal write still has to land.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.logs.MarkFailed(markCtx, entry.ID, lastErr.Error(), now); err != nil {
		log.WithError(err).Error("Failed to mark notification as failed")
	}
	entry.Status = notification.StatusFailed
	entry.FailedAt = &now
	entry.LastError = lastErr.Error()
	log.WithError(lastErr).WithField("attempts", entry.Attempts).Error("Notification failed permanently")
	return entry, fmt.Errorf("%w after %d attempts: %v", ErrDeliveryFailed, entry.Attempts, lastErr)
}

func (s *NotificationServiceImpl) deliver(ctx context.Context, g notification.Gateway, address, text string) error {
	attemptCtx := ctx
	if s.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.policy.AttemptTimeout)
		defer cancel()
	}
	return g.Deliver(attemptCtx, address, text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
