package repository

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

// JobsRedisRepo publishes job events on a redis pub/sub channel.
type JobsRedisRepo struct {
	redisClient *redis.Client
	channel     string
}

func NewJobsRedisRepo(redisClient *redis.Client, channel string) *JobsRedisRepo {
	return &JobsRedisRepo{
		redisClient: redisClient,
		channel:     channel,
	}
}

func (r *JobsRedisRepo) PublishEvent(ctx context.Context, event *models.JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal job event")
	}
	if err := r.redisClient.Publish(ctx, r.channel, data).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", r.channel)
	}
	return nil
}

// SubscribeToEvents opens a subscription to the events channel.
func (r *JobsRedisRepo) SubscribeToEvents(ctx context.Context) *redis.PubSub {
	return r.redisClient.Subscribe(ctx, r.channel)
}

type nopPublisher struct{}

// NewNopPublisher is used when redis is disabled.
func NewNopPublisher() jobs.EventPublisher {
	return nopPublisher{}
}

func (nopPublisher) PublishEvent(context.Context, *models.JobEvent) error {
	return nil
}
