package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/chatly-hq/chatly/internal/circuitbreaker"
	"github.com/chatly-hq/chatly/internal/common/config"
	"github.com/chatly-hq/chatly/internal/retry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	subscriptionKeyPrefix = "push:subs:"
	subscriptionTTL       = 90 * 24 * time.Hour
	maxSubscriptionsPer   = 10
)

// Subscription is the browser push subscription a client registers.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// PushSender delivers Web Push notifications to every subscription a user
// has registered. Stale subscriptions are pruned when the push service
// reports them gone.
type PushSender struct {
	client  *redis.Client
	options *webpush.Options
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	metrics DeliveryMetrics
	logger  *zap.Logger
}

// DeliveryMetrics counts push delivery outcomes. Nil disables counting.
type DeliveryMetrics interface {
	RecordNotification(success bool)
}

func NewPushSender(client *redis.Client, cfg config.PushConfig, metrics DeliveryMetrics, logger *zap.Logger) *PushSender {
	var options *webpush.Options
	if cfg.Enabled && cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		options = &webpush.Options{
			Subscriber:      cfg.Subscriber,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             cfg.TTL,
		}
	} else {
		logger.Info("web push disabled, subscriptions are recorded but nothing is sent")
	}
	return &PushSender{
		client:  client,
		options: options,
		metrics: metrics,
		breaker: circuitbreaker.New(5, 30*time.Second),
		retry: retry.Config{
			MaxAttempts: 3,
			InitialWait: 200 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Multiplier:  2.0,
		},
		logger: logger,
	}
}

func subscriptionKey(userID uuid.UUID) string {
	return subscriptionKeyPrefix + userID.String()
}

func (p *PushSender) Subscribe(ctx context.Context, userID uuid.UUID, sub *Subscription) error {
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return fmt.Errorf("subscription endpoint and keys are required")
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}

	key := subscriptionKey(userID)
	pipe := p.client.Pipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -maxSubscriptionsPer, -1)
	pipe.Expire(ctx, key, subscriptionTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (p *PushSender) Unsubscribe(ctx context.Context, userID uuid.UUID, endpoint string) error {
	return p.removeEndpoint(ctx, userID, endpoint)
}

// SendToUser pushes the payload to each of the user's subscriptions. Errors
// are logged and swallowed; push delivery is always best effort.
func (p *PushSender) SendToUser(ctx context.Context, userID uuid.UUID, payload []byte) {
	if p.options == nil {
		return
	}

	raw, err := p.client.LRange(ctx, subscriptionKey(userID), 0, -1).Result()
	if err != nil {
		p.logger.Warn("failed to load push subscriptions",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return
	}

	for _, item := range raw {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) != nil || sub.Endpoint == "" {
			continue
		}

		var status int
		err := retry.WithBackoff(ctx, p.retry, func() error {
			return p.breaker.Call(func() error {
				resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
					Endpoint: sub.Endpoint,
					Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
				}, p.options)
				if err != nil {
					return err
				}
				resp.Body.Close()
				status = resp.StatusCode
				return nil
			})
		})
		if p.metrics != nil {
			p.metrics.RecordNotification(err == nil)
		}
		if err != nil {
			p.logger.Warn("web push send failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			continue
		}

		if status == 404 || status == 410 {
			if err := p.removeEndpoint(ctx, userID, sub.Endpoint); err != nil {
				p.logger.Warn("failed to prune stale subscription",
					zap.String("user_id", userID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

func (p *PushSender) removeEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error {
	key := subscriptionKey(userID)
	raw, err := p.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return err
	}

	var kept []interface{}
	for _, item := range raw {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint == endpoint {
			continue
		}
		kept = append(kept, item)
	}

	pipe := p.client.Pipeline()
	pipe.Del(ctx, key)
	if len(kept) > 0 {
		pipe.RPush(ctx, key, kept...)
		pipe.Expire(ctx, key, subscriptionTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}
