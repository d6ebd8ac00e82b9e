package connection

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

// pendingToken never completes
func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeClient struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	subErr      error
	publishErr  error
	hangPublish bool
	handlers    map[string]mqtt.MessageHandler
	published   []published
	connects    int
	disconnects int
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: map[string]mqtt.MessageHandler{}}
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectErr != nil {
		return completedToken(c.connectErr)
	}
	c.connected = true
	return completedToken(nil)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.connected = false
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hangPublish {
		return pendingToken()
	}
	if c.publishErr != nil {
		return completedToken(c.publishErr)
	}
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte), retained: retained})
	return completedToken(nil)
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return completedToken(c.subErr)
	}
	c.handlers[topic] = callback
	return completedToken(nil)
}

// deliver simulates the broker pushing a message on a subscribed topic
func (c *fakeClient) deliver(topic, payload string) error {
	c.mu.Lock()
	h, ok := c.handlers[topic]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("not subscribed to %s", topic)
	}
	h(nil, &fakeMessage{topic: topic, payload: []byte(payload)})
	return nil
}

// drop simulates the TCP session dying underneath paho
func (c *fakeClient) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, p := range c.published {
		out = append(out, p.topic)
	}
	return out
}
