package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/draft/broadcast"
	"github.com/mcdev12/partdraft/go/internal/draft/events"
)

const (
	headerOrigin    = "Partdraft-Origin"
	headerEventType = "Event-Type"
	headerLotteryID = "Lottery-ID"
)

// JetStreamConfig holds configuration for the room event stream
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "DRAFT_ROOMS",
		SubjectPrefix:   "draft.rooms",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          time.Hour,
		DuplicateWindow: 2 * time.Minute,
	}
}

// ConnectJetStream connects to NATS and makes sure the room stream exists.
func ConnectJetStream(ctx context.Context, cfg JetStreamConfig) (*nats.Conn, jetstream.JetStream, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Live draft room events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		Storage:     jetstream.MemoryStorage,
		Duplicates:  cfg.DuplicateWindow,
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("ensure stream: %w", err)
	}
	log.Info().Str("stream", cfg.StreamName).Str("url", cfg.URL).Msg("JetStream stream ready")
	return nc, js, nil
}

// AsyncPublisher is the part of jetstream.JetStream the transport uses.
type AsyncPublisher interface {
	PublishMsgAsync(msg *nats.Msg, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error)
}

// NATSTransport delivers events to local sockets and publishes them to
// JetStream for relays in other processes.
type NATSTransport struct {
	local  broadcast.Transport
	js     AsyncPublisher
	prefix string
	origin string
}

func NewNATSTransport(local broadcast.Transport, js AsyncPublisher, subjectPrefix, origin string) *NATSTransport {
	return &NATSTransport{local: local, js: js, prefix: subjectPrefix, origin: origin}
}

func (t *NATSTransport) Broadcast(lotteryID uuid.UUID, event *events.Event) {
	t.local.Broadcast(lotteryID, event)

	msg, err := t.message(lotteryID, event)
	if err != nil {
		log.Error().Err(err).Str("lottery_id", lotteryID.String()).Msg("failed to encode event for JetStream")
		return
	}
	if _, err := t.js.PublishMsgAsync(msg, jetstream.WithMsgID(event.ID)); err != nil {
		log.Warn().
			Err(err).
			Str("lottery_id", lotteryID.String()).
			Str("event_type", string(event.Type)).
			Msg("failed to publish room event")
	}
}

func (t *NATSTransport) message(lotteryID uuid.UUID, event *events.Event) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &nats.Msg{
		Subject: RoomSubject(t.prefix, lotteryID, event.Type),
		Data:    data,
		Header: nats.Header{
			headerOrigin:    []string{t.origin},
			headerEventType: []string{string(event.Type)},
			headerLotteryID: []string{lotteryID.String()},
		},
	}, nil
}

// RoomSubject is the JetStream subject for one room event.
func RoomSubject(prefix string, lotteryID uuid.UUID, typ events.EventType) string {
	return fmt.Sprintf("%s.%s.%s", prefix, lotteryID, typ)
}

// Relay consumes room events published by other processes and fans them out
// to the sockets connected here.
type Relay struct {
	js     jetstream.JetStream
	local  broadcast.Transport
	config JetStreamConfig
	origin string
}

func NewRelay(js jetstream.JetStream, local broadcast.Transport, cfg JetStreamConfig, origin string) *Relay {
	return &Relay{js: js, local: local, config: cfg, origin: origin}
}

// Start consumes until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	consumer, err := r.js.OrderedConsumer(ctx, r.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{r.config.SubjectPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create relay consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := r.handle(msg); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to relay room event")
		}
	})
	if err != nil {
		return fmt.Errorf("start relay consumer: %w", err)
	}
	defer consumeCtx.Stop()

	log.Info().Str("stream", r.config.StreamName).Msg("room event relay started")
	<-ctx.Done()
	log.Info().Msg("room event relay shutting down")
	return nil
}

func (r *Relay) handle(msg jetstream.Msg) error {
	if msg.Headers().Get(headerOrigin) == r.origin {
		return nil
	}
	var event events.Event
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		return fmt.Errorf("unmarshal room event: %w", err)
	}
	r.local.Broadcast(event.LotteryID, &event)
	return nil
}
