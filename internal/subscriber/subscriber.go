// Package subscriber owns the MQTT connection lifecycle and the ingestion
// path: normalize inbound payloads, refresh the latest cache, fan accepted
// detections out on the internal bus, and persist qualifying ones without
// ever blocking message delivery.
package subscriber

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"smartdate"
	"smartdate/internal/bus"
	"smartdate/internal/cache"
	"smartdate/internal/logger"
	"smartdate/internal/normalize"
)

const (
	defaultReconnectDelay = 3 * time.Second
	defaultQueueSize      = 64
	connectTimeout        = 10 * time.Second
	insertTimeout         = 5 * time.Second
	disconnectQuiesceMs   = 250
)

// Config carries broker settings from the config file.
type Config struct {
	Broker         string
	ClientID       string
	Topic          string
	Username       string
	Password       string
	ReconnectDelay time.Duration
	QueueSize      int
}

// Inserter is the one durable-store operation the subscriber needs.
type Inserter interface {
	Insert(ctx context.Context, d smartdate.Detection) error
}

// Subscriber processes inbound messages sequentially in arrival order.
// Persistence runs on its own goroutine fed by a bounded queue, so a slow
// store never stalls delivery; queue order preserves arrival order.
type Subscriber struct {
	cfg    Config
	engine *normalize.Engine
	latest *cache.Latest
	events *bus.Bus
	store  Inserter
	log    *logger.Logger

	state         atomic.Int32
	everConnected atomic.Bool
	lost          chan struct{}
	persistCh     chan smartdate.Detection
	droppedWrites atomic.Uint64

	// newClient is swappable in tests.
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func New(cfg Config, engine *normalize.Engine, latest *cache.Latest, events *bus.Bus, store Inserter, log *logger.Logger) *Subscriber {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &Subscriber{
		cfg:       cfg,
		engine:    engine,
		latest:    latest,
		events:    events,
		store:     store,
		log:       log,
		lost:      make(chan struct{}, 1),
		persistCh: make(chan smartdate.Detection, cfg.QueueSize),
		newClient: mqtt.NewClient,
	}
}

// State returns the current connection state.
func (s *Subscriber) State() smartdate.ConnectionState {
	return smartdate.ConnectionState(s.state.Load())
}

// DroppedWrites counts detections lost to storage failures or a full queue.
func (s *Subscriber) DroppedWrites() uint64 {
	return s.droppedWrites.Load()
}

// Run connects, subscribes and retries with a flat delay until ctx is
// canceled. The connection, the retry timer and the persistence worker are
// all torn down before Run returns.
func (s *Subscriber) Run(ctx context.Context) {
	go s.persistWorker(ctx)

	client := s.newClient(s.clientOptions())
	defer func() {
		client.Disconnect(disconnectQuiesceMs)
		s.setState(smartdate.StateDisconnected)
	}()

	for {
		s.setState(s.attemptState())
		token := client.Connect()
		if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
			s.setState(smartdate.StateDisconnected)
			s.log.Warnw("mqtt_connect_failed", "broker", s.cfg.Broker, "err", token.Error())
			if !s.sleep(ctx) {
				return
			}
			continue
		}
		// connected state is set by onConnect, which also (re-)subscribes

		select {
		case <-ctx.Done():
			return
		case <-s.lost:
			s.setState(smartdate.StateDisconnected)
			if !s.sleep(ctx) {
				return
			}
		}
	}
}

func (s *Subscriber) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetAutoReconnect(false). // the flat-delay retry loop owns reconnection
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost)
	return opts
}

// attemptState distinguishes the first connect from later reconnects.
func (s *Subscriber) attemptState() smartdate.ConnectionState {
	if s.everConnected.Load() {
		return smartdate.StateReconnecting
	}
	return smartdate.StateConnecting
}

// sleep waits one flat reconnect interval; false means ctx was canceled.
func (s *Subscriber) sleep(ctx context.Context) bool {
	t := time.NewTimer(s.cfg.ReconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Subscriber) setState(st smartdate.ConnectionState) {
	s.state.Store(int32(st))
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	s.setState(smartdate.StateConnected)
	s.everConnected.Store(true)
	s.log.Infow("mqtt_connected", "broker", s.cfg.Broker)

	token := client.Subscribe(s.cfg.Topic, 0, s.onMessage)
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		s.log.Errorw("mqtt_subscribe_failed", "topic", s.cfg.Topic, "err", token.Error())
	}
}

func (s *Subscriber) onConnectionLost(_ mqtt.Client, err error) {
	s.log.Warnw("mqtt_connection_lost", "err", err)
	select {
	case s.lost <- struct{}{}:
	default:
	}
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.handleMessage(msg.Payload())
}

// handleMessage is the per-message ingestion path. Malformed payloads are
// logged and dropped with no state change; transport-level errors never
// reach here.
func (s *Subscriber) handleMessage(payload []byte) {
	d, err := s.engine.Normalize(payload)
	if err != nil {
		if errors.Is(err, normalize.ErrMalformedPayload) {
			s.log.Warnw("mqtt_malformed_payload", "err", err)
			return
		}
		s.log.Errorw("mqtt_normalize_failed", "err", err)
		return
	}

	// the slot always tracks the newest message, "none" included
	s.latest.Set(d)
	s.events.Publish(d)
	s.log.Infow("mqtt_received", "label", d.Label, "confidence", d.Confidence)

	if !d.Persistable() {
		return
	}
	select {
	case s.persistCh <- d:
	default:
		n := s.droppedWrites.Add(1)
		s.log.Errorw("persist_queue_full", "label", d.Label, "dropped_total", n)
	}
}

// persistWorker drains the queue one detection at a time, preserving arrival
// order. A write failure is logged and counted; the cache update already
// happened and is never rolled back.
func (s *Subscriber) persistWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.persistCh:
			insertCtx, cancel := context.WithTimeout(context.Background(), insertTimeout)
			err := s.store.Insert(insertCtx, d)
			cancel()
			if err != nil {
				n := s.droppedWrites.Add(1)
				s.log.Errorw("persist_failed", "label", d.Label, "err", err, "dropped_total", n)
			}
		}
	}
}
