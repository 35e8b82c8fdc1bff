package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"afyapay/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const failedNotificationsKey = "afyapay:notifications:failed"

// NotificationService delivers payment outcome events to the configured
// webhook sink. Deliveries are best effort; failures are queued in Redis
// for a later retry and never block settlement.
type NotificationService interface {
	PaymentSucceeded(ctx context.Context, event *PaymentEvent)
	PaymentFailed(ctx context.Context, event *PaymentEvent)
	RetryFailed(ctx context.Context) (int, error)
}

// PaymentEvent is the payload posted to the notification sink.
type PaymentEvent struct {
	Type          string     `json:"type"`
	InvoiceID     *uuid.UUID `json:"invoice_id,omitempty"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	Amount        float64    `json:"amount"`
	Reference     string     `json:"reference,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

type webhookNotificationService struct {
	webhookURL string
	http       *http.Client
	redis      *redis.Client
	logger     *zap.Logger
}

func NewWebhookNotificationService(webhookURL, redisAddr, redisPassword string, redisDB int) NotificationService {
	return &webhookNotificationService{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 30 * time.Second},
		redis: redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		}),
		logger: utils.GetLogger(),
	}
}

func (s *webhookNotificationService) PaymentSucceeded(ctx context.Context, event *PaymentEvent) {
	event.Type = "payment.succeeded"
	s.deliver(ctx, event)
}

func (s *webhookNotificationService) PaymentFailed(ctx context.Context, event *PaymentEvent) {
	event.Type = "payment.failed"
	s.deliver(ctx, event)
}

func (s *webhookNotificationService) deliver(ctx context.Context, event *PaymentEvent) {
	if s.webhookURL == "" {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal notification", zap.Error(err))
		return
	}

	if err := s.post(ctx, payload); err != nil {
		s.logger.Warn("notification delivery failed, queueing for retry",
			zap.String("type", event.Type), zap.Error(err))
		if qErr := s.redis.RPush(ctx, failedNotificationsKey, payload).Err(); qErr != nil {
			s.logger.Error("failed to queue notification", zap.Error(qErr))
		}
	}
}

// RetryFailed drains the failed-delivery queue. Events that fail again go
// back to the end of the queue.
func (s *webhookNotificationService) RetryFailed(ctx context.Context) (int, error) {
	pending, err := s.redis.LLen(ctx, failedNotificationsKey).Result()
	if err != nil {
		return 0, err
	}

	delivered := 0
	for i := int64(0); i < pending; i++ {
		payload, err := s.redis.LPop(ctx, failedNotificationsKey).Bytes()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return delivered, err
		}
		if err := s.post(ctx, payload); err != nil {
			if qErr := s.redis.RPush(ctx, failedNotificationsKey, payload).Err(); qErr != nil {
				s.logger.Error("failed to requeue notification", zap.Error(qErr))
			}
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (s *webhookNotificationService) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &notificationError{status: resp.StatusCode}
	}
	return nil
}

type notificationError struct {
	status int
}

func (e *notificationError) Error() string {
	return "notification sink returned status " + http.StatusText(e.status)
}
