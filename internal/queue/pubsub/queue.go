// Package pubsub implements the distributed frontier on Google Cloud
// Pub/Sub. Delivery is at-least-once; the dedup gate downstream converts
// that into at-most-once fetching, so no exactly-once machinery is
// needed here.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/sitesearch/crawler/internal/crawler"
)

// Config identifies the topic and subscription carrying work items.
type Config struct {
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
}

// Queue publishes work items to a topic and serves received items to
// Dequeue via an internal channel fed by Receive. The channel is
// unbuffered: an item is handed over, and its message acked, only when
// a Dequeue caller is there to take it. A message sitting in a buffer
// after its ack would be silently lost if this process died.
type Queue struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	subID     string
	items     chan crawler.WorkItem
	logger    *zap.Logger
}

// New constructs a Queue over an existing Pub/Sub client.
func New(client *pubsub.Client, cfg Config, logger *zap.Logger) *Queue {
	return &Queue{
		client:    client,
		publisher: client.Publisher(cfg.TopicID),
		subID:     cfg.SubscriptionID,
		items:     make(chan crawler.WorkItem),
		logger:    logger,
	}
}

// Enqueue publishes the item as JSON and waits for the server ack.
func (q *Queue) Enqueue(ctx context.Context, item crawler.WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal work item: %w", err)
	}
	result := q.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"crawl_id": item.CrawlID},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish work item: %w", err)
	}
	return nil
}

// Dequeue blocks until a received item is available or the context ends.
func (q *Queue) Dequeue(ctx context.Context) (crawler.WorkItem, error) {
	select {
	case <-ctx.Done():
		return crawler.WorkItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item := <-q.items:
		return item, nil
	}
}

// Receive pulls subscription messages until the context ends. A message
// is acked only once a Dequeue caller has taken it, and nacked for
// redelivery when the context ends first; unparseable messages are acked
// and dropped so a poison payload cannot wedge the subscription.
func (q *Queue) Receive(ctx context.Context) error {
	sub := q.client.Subscriber(q.subID)
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var item crawler.WorkItem
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			q.logger.Error("discarding malformed work item", zap.Error(err))
			msg.Ack()
			return
		}
		if q.deliver(ctx, item) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
	if err != nil {
		return fmt.Errorf("receive from subscription %q: %w", q.subID, err)
	}
	return nil
}

// deliver blocks until a Dequeue caller takes the item or the context
// ends, and reports whether the handoff happened.
func (q *Queue) deliver(ctx context.Context, item crawler.WorkItem) bool {
	select {
	case q.items <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close stops the publisher.
func (q *Queue) Close() error {
	q.publisher.Stop()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
