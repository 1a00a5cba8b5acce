package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/agrilink/agrilink-backend/internal/consumers/rewards"
	"github.com/agrilink/agrilink-backend/internal/notifications"
	"github.com/agrilink/agrilink-backend/pkg/config"
	"github.com/agrilink/agrilink-backend/pkg/db"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/outbox"
	"github.com/agrilink/agrilink-backend/pkg/pubsub"
	"github.com/agrilink/agrilink-backend/pkg/redis"
)

type ServiceParams struct {
	Config                *config.Config
	Logger                *logger.Logger
	DB                    *db.Client
	Redis                 *redis.Client
	PubSub                *pubsub.Client
	OrderNotifications    *notifications.Consumer
	DeliveryNotifications *notifications.Consumer
	Rewards               *rewards.Consumer
	RewardsSubscription   *gcppubsub.Subscriber
}

// Service runs the settlement-side consumers: in-app notifications for order
// and delivery events, and loyalty reward accrual after settlement.
type Service struct {
	cfg                   *config.Config
	logg                  *logger.Logger
	db                    *db.Client
	redis                 *redis.Client
	pubsub                *pubsub.Client
	orderNotifications    *notifications.Consumer
	deliveryNotifications *notifications.Consumer
	rewards               *rewards.Consumer
	rewardsSubscription   *gcppubsub.Subscriber
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.OrderNotifications == nil {
		return nil, errors.New("order notification consumer is required")
	}
	if params.DeliveryNotifications == nil {
		return nil, errors.New("delivery notification consumer is required")
	}
	if params.Rewards == nil {
		return nil, errors.New("rewards consumer is required")
	}
	if params.RewardsSubscription == nil {
		return nil, errors.New("rewards subscription is required")
	}

	return &Service{
		cfg:                   params.Config,
		logg:                  params.Logger,
		db:                    params.DB,
		redis:                 params.Redis,
		pubsub:                params.PubSub,
		orderNotifications:    params.OrderNotifications,
		deliveryNotifications: params.DeliveryNotifications,
		rewards:               params.Rewards,
		rewardsSubscription:   params.RewardsSubscription,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 3)
	go func() {
		errCh <- s.orderNotifications.Run(ctx)
	}()
	go func() {
		errCh <- s.deliveryNotifications.Run(ctx)
	}()
	go func() {
		errCh <- s.runRewards(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "consumer stopped unexpectedly", err)
				return err
			}
			return err
		}
	}
}

// runRewards drives the rewards consumer off the orders subscription.
// Reward grants are best effort, so decode problems ack and move on.
func (s *Service) runRewards(ctx context.Context) error {
	return s.rewardsSubscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event_type": eventType,
		})

		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			s.logg.Error(logCtx, "failed to decode envelope", err)
			msg.Ack()
			return
		}

		if err := s.rewards.Process(ctx, eventType, envelope); err != nil {
			s.logg.Error(logCtx, "reward processing failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
