package connection

import (
	"context"
	goerrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/google/uuid"
)

// State is the lifecycle of the broker connection
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Client is the subset of mqtt.Client the manager drives
type Client interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Inbound is a message received on a subscribed topic
type Inbound struct {
	Topic   string
	Payload []byte
}

type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// Will is published by the broker when the connection drops without a
// clean disconnect
type Will struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Options configures a Manager
type Options struct {
	Broker        string // tcp://host:port
	ClientID      string
	Username      string
	Password      string
	KeepAlive     time.Duration
	Timeout       time.Duration // Bound for connect, subscribe and publish
	QoS           byte
	Subscriptions []string
	InboundBuffer int // Messages held between KeepAlive calls, default 64
	BatchSize     int // Messages returned per KeepAlive, default 32
	OutboxSize    int // Pending Enqueue messages kept while offline, default 16
	Will          *Will
	Logger        logger.ILogger
}

// OptionsFromConfig builds manager options from the MQTT configuration.
// The client id gets a random suffix so restarts never collide with a
// session the broker still holds.
func OptionsFromConfig(cfg config.MQTTConfig, role string, subscriptions ...string) Options {
	return Options{
		Broker:        cfg.BrokerURL(),
		ClientID:      fmt.Sprintf("%s_%s_%s", cfg.ClientID, role, uuid.NewString()[:8]),
		Username:      cfg.Username,
		Password:      cfg.Password,
		KeepAlive:     cfg.KeepAliveDuration(),
		Timeout:       cfg.TimeoutDuration(),
		QoS:           cfg.QoS,
		Subscriptions: subscriptions,
	}
}

func (o *Options) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 60 * time.Second
	}
	if o.InboundBuffer <= 0 {
		o.InboundBuffer = 64
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 32
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 16
	}
	if o.Logger == nil {
		o.Logger = logger.NewStandardLogger()
	}
}

// Manager owns one broker connection. It never reconnects on its own: the
// owning loop calls Connect again on its next cycle. KeepAlive must be
// called periodically to detect a dead connection and to drain inbound
// messages.
type Manager struct {
	mu     sync.Mutex
	state  State
	client Client
	opts   Options
	log    logger.ILogger

	inbound chan Inbound
	outbox  []outbound

	lost    atomic.Bool
	dropped atomic.Int64
}

// NewManager creates a manager backed by a paho client
func NewManager(opts Options) *Manager {
	opts.applyDefaults()
	m := newManager(opts)

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetUsername(opts.Username)
	clientOpts.SetPassword(opts.Password)
	clientOpts.SetCleanSession(true)
	clientOpts.SetAutoReconnect(false)
	clientOpts.SetConnectRetry(false)
	clientOpts.SetKeepAlive(opts.KeepAlive)
	clientOpts.SetPingTimeout(opts.Timeout)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetWriteTimeout(opts.Timeout)
	if opts.Will != nil {
		clientOpts.SetBinaryWill(opts.Will.Topic, opts.Will.Payload, opts.QoS, opts.Will.Retained)
	}
	clientOpts.SetConnectionLostHandler(m.onConnectionLost)

	m.client = mqtt.NewClient(clientOpts)
	return m
}

// NewManagerWithClient creates a manager around an existing client (for testing)
func NewManagerWithClient(client Client, opts Options) *Manager {
	opts.applyDefaults()
	m := newManager(opts)
	m.client = client
	return m
}

func newManager(opts Options) *Manager {
	return &Manager{
		state:   Disconnected,
		opts:    opts,
		log:     opts.Logger,
		inbound: make(chan Inbound, opts.InboundBuffer),
	}
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the last known state is Connected
func (m *Manager) IsConnected() bool {
	return m.State() == Connected
}

// Broker returns the broker address
func (m *Manager) Broker() string {
	return m.opts.Broker
}

// Dropped returns how many inbound messages were discarded because the
// buffer was full
func (m *Manager) Dropped() int64 {
	return m.dropped.Load()
}

// OutboxLen returns the number of messages waiting for the next connect
func (m *Manager) OutboxLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outbox)
}

// Connect establishes the connection and subscribes every configured topic
// before reporting Connected. It is a no-op while already connected. Pending
// outbox messages are flushed in order once subscribed.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Connected && !m.lost.Load() && m.client.IsConnected() {
		return nil
	}

	// A half-open session left by a failed publish is torn down first
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}

	m.state = Connecting
	m.lost.Store(false)
	m.log.LogDebug("Connecting to MQTT broker %s", m.opts.Broker)

	if err := m.wait(ctx, m.client.Connect(), "connect"); err != nil {
		m.state = Disconnected
		connErr := errors.NewConnectionError("connect", err, m.opts.Broker)
		if refused(err) {
			connErr.Severity = errors.SeverityCritical
		}
		return connErr
	}

	for _, topic := range m.opts.Subscriptions {
		if err := m.wait(ctx, m.client.Subscribe(topic, m.opts.QoS, m.onMessage), "subscribe"); err != nil {
			m.client.Disconnect(250)
			m.state = Disconnected
			return errors.NewConnectionError("subscribe", err, m.opts.Broker).WithTopic(topic)
		}
		m.log.LogDebug("Subscribed to: %s", topic)
	}

	m.state = Connected
	m.log.LogInfo("Connected to MQTT broker %s", m.opts.Broker)

	return m.flushLocked(ctx)
}

// KeepAlive checks the connection and returns up to one batch of buffered
// inbound messages. On a dead connection the state drops to Disconnected and
// buffered messages stay queued for the next successful cycle.
func (m *Manager) KeepAlive(ctx context.Context) ([]Inbound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Connected {
		return nil, errors.NewConnectionError("keep_alive", fmt.Errorf("not connected"), m.opts.Broker)
	}
	if m.lost.Load() || !m.client.IsConnected() {
		m.state = Disconnected
		return nil, errors.NewConnectionError("keep_alive", fmt.Errorf("connection lost"), m.opts.Broker)
	}

	var batch []Inbound
	for len(batch) < m.opts.BatchSize {
		select {
		case <-ctx.Done():
			return batch, nil
		case msg := <-m.inbound:
			batch = append(batch, msg)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Publish sends payload and reports success. It fails fast while not
// connected; a publish error or timeout drops the state to Disconnected.
// Nothing is queued.
func (m *Manager) Publish(ctx context.Context, topic string, payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.publishLocked(ctx, outbound{topic: topic, payload: payload}); err != nil {
		m.log.LogDebug("Publish to %s failed: %v", topic, err)
		return false
	}
	return true
}

// Enqueue publishes now when connected, otherwise keeps the message in a
// bounded outbox delivered after the next successful Connect. The oldest
// pending message is dropped when the outbox is full. Returns true when the
// message was delivered immediately.
func (m *Manager) Enqueue(ctx context.Context, topic string, payload []byte, retained bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := outbound{topic: topic, payload: payload, retained: retained}
	if err := m.publishLocked(ctx, msg); err == nil {
		return true
	}

	if len(m.outbox) >= m.opts.OutboxSize {
		m.log.LogWarn("Outbox full, dropping oldest message for %s", m.outbox[0].topic)
		m.outbox = m.outbox[1:]
	}
	m.outbox = append(m.outbox, msg)
	return false
}

// Disconnect closes the connection cleanly. Safe to call in any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	m.state = Disconnected
}

func (m *Manager) publishLocked(ctx context.Context, msg outbound) error {
	if m.state != Connected {
		return errors.NewConnectionError("publish", fmt.Errorf("not connected"), m.opts.Broker).WithTopic(msg.topic)
	}
	if m.lost.Load() {
		m.state = Disconnected
		return errors.NewConnectionError("publish", fmt.Errorf("connection lost"), m.opts.Broker).WithTopic(msg.topic)
	}

	tok := m.client.Publish(msg.topic, m.opts.QoS, msg.retained, msg.payload)
	if err := m.wait(ctx, tok, "publish"); err != nil {
		m.state = Disconnected
		m.log.LogWarn("Publish to %s failed, marking connection down: %v", msg.topic, err)
		return errors.NewConnectionError("publish", err, m.opts.Broker).WithTopic(msg.topic)
	}
	return nil
}

func (m *Manager) flushLocked(ctx context.Context) error {
	for len(m.outbox) > 0 {
		if err := m.publishLocked(ctx, m.outbox[0]); err != nil {
			return err
		}
		m.outbox = m.outbox[1:]
	}
	return nil
}

// wait bounds a token by the configured timeout and ctx
func (m *Manager) wait(ctx context.Context, tok mqtt.Token, op string) error {
	timer := time.NewTimer(m.opts.Timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return fmt.Errorf("%s timed out after %s", op, m.opts.Timeout)
	case <-ctx.Done():
		return fmt.Errorf("%s cancelled: %w", op, ctx.Err())
	}
}

// onMessage runs on the paho goroutine; it only buffers
func (m *Manager) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	select {
	case m.inbound <- Inbound{Topic: msg.Topic(), Payload: payload}:
		if logger.IsTraceEnabled() {
			logger.LogTrace("Buffered message on %s: %s", msg.Topic(), payload)
		}
	default:
		m.dropped.Add(1)
		m.log.LogWarn("Inbound buffer full, message on %s dropped", msg.Topic())
	}
}

// refused reports whether the broker rejected the credentials; retrying
// with the same configuration cannot succeed
func refused(err error) bool {
	return goerrors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
		goerrors.Is(err, packets.ErrorRefusedNotAuthorised)
}

func (m *Manager) onConnectionLost(_ mqtt.Client, err error) {
	m.lost.Store(true)
	m.log.LogError("Connection to %s lost: %v", m.opts.Broker, err)
}
