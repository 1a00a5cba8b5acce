package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/agrilink/agrilink-backend/pkg/config"
	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type PublisherParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
}

// Publisher drains the transactional outbox onto pub/sub. Events carry the
// aggregate id as the ordering key, so settlement and delivery transitions
// for one order reach consumers in the order the settlement wrote them.
type Publisher struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			pub := params.PubSub.Publisher(topic)
			if pub == nil {
				return nil
			}
			pub.EnableMessageOrdering = true
			return &gcpPublisher{Publisher: pub}
		}
	}

	p := &Publisher{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		publisherFactory: factory,
		batchSize:        params.Config.Outbox.BatchSize,
		maxAttempts:      params.Config.Outbox.MaxAttempts,
		pollInterval:     time.Duration(params.Config.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	if p.pollInterval <= 0 {
		p.pollInterval = defaultPollMs * time.Millisecond
	}
	return p, nil
}

func (p *Publisher) checkDependencies(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		p.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := p.pubsub.Ping(ctx); err != nil {
		p.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	return nil
}

// Run polls the outbox until the context is canceled. Batch errors back off
// exponentially; an empty poll sleeps one jittered interval.
func (p *Publisher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := p.checkDependencies(ctx); err != nil {
		return err
	}

	backoff := p.pollInterval
	for {
		select {
		case <-ctx.Done():
			p.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		drained, err := p.publishPending(ctx)
		if err != nil {
			p.logg.Error(ctx, "outbox batch failed", err)
			backoff = min(backoff*2, maxBackoff)
			if err := p.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = p.pollInterval

		if drained > 0 {
			continue
		}
		if err := p.sleep(ctx, withJitter(p.pollInterval)); err != nil {
			return err
		}
	}
}

// publishPending drains one batch and returns how many events it handled.
// Every event in the batch ends the transaction in a terminal bookkeeping
// state: published, failed with a bumped attempt count, or dead-lettered.
func (p *Publisher) publishPending(ctx context.Context) (int, error) {
	handled := 0
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := p.repo.FetchUnpublishedForPublish(tx, p.batchSize, p.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := p.dispatch(ctx, tx, event); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	return handled, err
}

// dispatch pushes one event to its topic. The returned error is only for
// bookkeeping failures; publish failures are absorbed into the event's row.
func (p *Publisher) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := p.registry.Resolve(event)
	if err != nil {
		return p.deadLetter(ctx, tx, event, "", enums.OutboxDLQReasonNonRetryable, err)
	}

	topic := resolved.Descriptor.Topic
	if err := p.send(ctx, event, resolved); err != nil {
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) {
			return p.deadLetter(ctx, tx, event, topic, enums.OutboxDLQReasonNonRetryable, err)
		}

		if event.AttemptCount+1 >= p.maxAttempts {
			terminal := fmt.Errorf("max publish attempts reached: %w", err)
			return p.deadLetter(ctx, tx, event, topic, enums.OutboxDLQReasonMaxAttempts, terminal)
		}

		logCtx := p.eventLogCtx(ctx, event, topic)
		logCtx = p.logg.WithField(logCtx, "error", err.Error())
		p.logg.Warn(logCtx, "outbox publish failed, will retry")
		if markErr := p.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
		}
		return nil
	}

	if markErr := p.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, markErr)
	}
	p.logg.Info(p.eventLogCtx(ctx, event, topic), "outbox event published")
	return nil
}

func (p *Publisher) send(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := p.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// deadLetter copies the event into the DLQ table and marks the outbox row
// terminal so it is never fetched again.
func (p *Publisher) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, topic string, reason enums.OutboxDLQErrorReason, cause error) error {
	logCtx := p.eventLogCtx(ctx, event, topic)
	logCtx = p.logg.WithFields(logCtx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	})
	p.logg.Warn(logCtx, "outbox event will not be retried")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := p.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := p.repo.MarkTerminalTx(tx, event.ID, cause, p.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (p *Publisher) eventLogCtx(ctx context.Context, event models.OutboxEvent, topic string) context.Context {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return p.logg.WithFields(ctx, fields)
}

func (p *Publisher) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
