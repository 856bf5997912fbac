package subscriber

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartdate"
	"smartdate/internal/bus"
	"smartdate/internal/cache"
	"smartdate/internal/logger"
	"smartdate/internal/normalize"
)

// ---- fakes ----

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakeClient simulates the paho client: a successful Connect invokes the
// configured OnConnect handler synchronously, like the real client does on
// its own goroutine.
type fakeClient struct {
	mu          sync.Mutex
	opts        *mqtt.ClientOptions
	connectErrs []error // consumed per attempt; empty slice = always succeed
	attempts    int
	subscribed  []string
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	c.attempts++
	var err error
	if len(c.connectErrs) > 0 {
		err = c.connectErrs[0]
		c.connectErrs = c.connectErrs[1:]
	}
	c.mu.Unlock()
	if err != nil {
		return &fakeToken{err: err}
	}
	if c.opts.OnConnect != nil {
		c.opts.OnConnect(c)
	}
	return &fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.subscribed = append(c.subscribed, topic)
	c.mu.Unlock()
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint)         {}
func (c *fakeClient) IsConnected() bool       { return true }
func (c *fakeClient) IsConnectionOpen() bool  { return true }
func (c *fakeClient) Publish(string, byte, bool, interface{}) mqtt.Token { return &fakeToken{} }
func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (c *fakeClient) Unsubscribe(...string) mqtt.Token        { return &fakeToken{} }
func (c *fakeClient) AddRoute(string, mqtt.MessageHandler)    {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func (c *fakeClient) connectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

type recordingStore struct {
	mu       sync.Mutex
	inserted []smartdate.Detection
	err      error
	notify   chan struct{}
}

func newRecordingStore() *recordingStore {
	return &recordingStore{notify: make(chan struct{}, 16)}
}

func (r *recordingStore) Insert(_ context.Context, d smartdate.Detection) error {
	r.mu.Lock()
	r.inserted = append(r.inserted, d)
	r.mu.Unlock()
	r.notify <- struct{}{}
	return r.err
}

func (r *recordingStore) all() []smartdate.Detection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]smartdate.Detection, len(r.inserted))
	copy(out, r.inserted)
	return out
}

// ---- helpers ----

func newTestSubscriber(t *testing.T, store Inserter, queueSize int) (*Subscriber, *cache.Latest, *bus.Bus) {
	t.Helper()
	latest := cache.NewLatest()
	events := bus.New()
	s := New(Config{
		Broker:         "tcp://localhost:1883",
		Topic:          "smartdate/detections",
		ReconnectDelay: 10 * time.Millisecond,
		QueueSize:      queueSize,
	}, normalize.New(), latest, events, store, logger.Get(logger.ErrorLevel))
	return s, latest, events
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// ---- tests ----

func TestHandleMessage_MalformedDropped(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	s, latest, _ := newTestSubscriber(t, store, 4)

	s.handleMessage([]byte(`{not json`))

	_, ok := latest.Get()
	assert.False(t, ok, "cache must stay empty on malformed payload")
	assert.Empty(t, store.all())
}

func TestHandleMessage_NoneUpdatesCacheOnly(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	s, latest, _ := newTestSubscriber(t, store, 4)

	s.handleMessage([]byte(`{"label":"none","confidence":0}`))

	d, ok := latest.Get()
	require.True(t, ok)
	assert.Equal(t, smartdate.LabelNone, d.Label)
	assert.Empty(t, store.all(), `"none" detections are never persisted`)
	assert.Empty(t, s.persistCh)
}

func TestHandleMessage_PersistableFlowsInOrder(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	s, latest, events := newTestSubscriber(t, store, 8)

	push := make(chan smartdate.Detection, 8)
	require.NoError(t, events.Subscribe("test", push))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.persistWorker(ctx)

	s.handleMessage([]byte(`{"label":"alig","confidence":0.92,"timestamp":1700000000}`))
	s.handleMessage([]byte(`{"label":"kenta","confidence":0.70,"timestamp":1700000100}`))

	<-store.notify
	<-store.notify

	got := store.all()
	require.Len(t, got, 2)
	assert.Equal(t, "alig", got[0].Label)
	assert.Equal(t, 92, got[0].Confidence)
	assert.Equal(t, "kenta", got[1].Label, "arrival order must be preserved")

	d, ok := latest.Get()
	require.True(t, ok)
	assert.Equal(t, "kenta", d.Label)

	assert.Equal(t, "alig", (<-push).Label)
	assert.Equal(t, "kenta", (<-push).Label)
}

func TestHandleMessage_FullQueueDropsAndCounts(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	s, _, _ := newTestSubscriber(t, store, 1)
	// no persist worker running: second enqueue must drop, not block

	s.handleMessage([]byte(`{"label":"alig","confidence":0.9}`))

	done := make(chan struct{})
	go func() {
		s.handleMessage([]byte(`{"label":"bessra","confidence":0.8}`))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleMessage blocked on a full persist queue")
	}
	assert.Equal(t, uint64(1), s.DroppedWrites())
}

func TestHandleMessage_StorageFailureKeepsCache(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	store.err = errors.New("storage down")
	s, latest, _ := newTestSubscriber(t, store, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.persistWorker(ctx)

	s.handleMessage([]byte(`{"label":"alig","confidence":0.92}`))
	<-store.notify

	waitFor(t, func() bool { return s.DroppedWrites() == 1 }, "dropped-write counter not bumped")
	d, ok := latest.Get()
	require.True(t, ok, "cache update must survive a storage failure")
	assert.Equal(t, "alig", d.Label)
}

func TestRun_FlatRetryOnConnectFailure(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	s, _, _ := newTestSubscriber(t, store, 4)

	var client *fakeClient
	s.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		client = &fakeClient{opts: opts, connectErrs: []error{
			errors.New("refused"), errors.New("refused"), errors.New("refused"),
			errors.New("refused"), errors.New("refused"), errors.New("refused"),
		}}
		return client
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return client != nil && client.connectAttempts() >= 3 },
		"expected repeated flat-delay retries")
	assert.NotEqual(t, smartdate.StateConnected, s.State())

	cancel()
	<-done
	assert.Equal(t, smartdate.StateDisconnected, s.State())
}

func TestRun_ConnectSubscribeLoseReconnect(t *testing.T) {
	t.Parallel()

	store := newRecordingStore()
	s, _, _ := newTestSubscriber(t, store, 4)

	var client *fakeClient
	s.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		client = &fakeClient{opts: opts}
		return client
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return s.State() == smartdate.StateConnected },
		"subscriber never reached connected")
	client.mu.Lock()
	subscribed := len(client.subscribed) > 0 && client.subscribed[0] == "smartdate/detections"
	client.mu.Unlock()
	assert.True(t, subscribed, "must subscribe to the configured topic on connect")

	// broker reports the connection lost: disconnected, then automatic retry
	client.opts.OnConnectionLost(client, errors.New("gone"))
	waitFor(t, func() bool { return client.connectAttempts() >= 2 },
		"no automatic reconnect after loss")
	waitFor(t, func() bool { return s.State() == smartdate.StateConnected },
		"did not reconnect")

	cancel()
	<-done
}
