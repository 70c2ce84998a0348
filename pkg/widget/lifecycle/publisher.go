package lifecycle

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatwidget/pkg/widget/controller"
)

const (
	DefaultTopic = "chatwidget.lifecycle"
	queueSize    = 256
)

// Settings holds the lifecycle transport configuration.
type Settings struct {
	RedisEnabled bool
	RedisAddr    string
	Topic        string
}

// Publisher forwards controller lifecycle events to a watermill publisher.
// Observe never blocks the UI loop: events are queued and published from Run.
// When the queue is full, events are dropped and logged.
type Publisher struct {
	pub   message.Publisher
	sub   message.Subscriber
	topic string
	queue chan controller.LifecycleEvent
}

var _ controller.Observer = &Publisher{}

// NewPublisher builds an in-process gochannel publisher, or a Redis Streams
// publisher when s.RedisEnabled is set.
func NewPublisher(s Settings) (*Publisher, error) {
	topic := s.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	logger := newWatermillLogger(log.Logger)
	p := &Publisher{topic: topic, queue: make(chan controller.LifecycleEvent, queueSize)}

	if !s.RedisEnabled {
		gc := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: queueSize}, logger)
		p.pub = gc
		p.sub = gc
		return p, nil
	}

	if s.RedisAddr == "" {
		return nil, errors.New("lifecycle: redis enabled without an address")
	}
	client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: rstream.DefaultMarshallerUnmarshaller{},
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "lifecycle: redis publisher")
	}
	p.pub = pub
	return p, nil
}

func (p *Publisher) Topic() string { return p.topic }

// Subscriber returns the in-process subscriber, or nil when publishing to Redis.
func (p *Publisher) Subscriber() message.Subscriber { return p.sub }

func (p *Publisher) Observe(ev controller.LifecycleEvent) {
	select {
	case p.queue <- ev:
	default:
		log.Warn().Str("component", "lifecycle").Str("kind", string(ev.Kind)).Msg("lifecycle queue full, dropping event")
	}
}

// Run publishes queued events until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-p.queue:
			p.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.queue:
					p.publish(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (p *Publisher) publish(ev controller.LifecycleEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Str("component", "lifecycle").Msg("encode lifecycle event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("kind", string(ev.Kind))
	msg.Metadata.Set("tenant", ev.TenantID)
	if err := p.pub.Publish(p.topic, msg); err != nil {
		log.Warn().Err(err).Str("component", "lifecycle").Str("kind", string(ev.Kind)).Msg("publish lifecycle event")
	}
}

func (p *Publisher) Close() error {
	return p.pub.Close()
}

// Decode parses a lifecycle message payload.
func Decode(msg *message.Message) (controller.LifecycleEvent, error) {
	var ev controller.LifecycleEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, errors.Wrap(err, "decode lifecycle event")
	}
	return ev, nil
}

// NewRedisSubscriber subscribes to lifecycle events on Redis Streams. A new
// consumer group only sees events published after it was created unless
// fromStart is set.
func NewRedisSubscriber(addr, group, consumer string, fromStart bool) (message.Subscriber, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	cfg := rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  rstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: group,
		Consumer:      consumer,
	}
	if fromStart {
		cfg.OldestId = "0"
	}
	sub, err := rstream.NewSubscriber(cfg, newWatermillLogger(log.Logger))
	if err != nil {
		return nil, errors.Wrap(err, "lifecycle: redis subscriber")
	}
	return sub, nil
}
