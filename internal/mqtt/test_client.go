package mqtt

import (
	"sync"
	"time"
)

type PublishedMessage struct {
	Topic   string
	Payload string
	Retain  bool
}

// TestBroker is an in-memory Broker. It records publishes and lets tests
// deliver messages to the registered subscriptions.
type TestBroker struct {
	mu            sync.Mutex
	topics        Topics
	published     []PublishedMessage
	subscriptions map[string]func(topic string, payload []byte)
	onLost        func(error)
	connectErr    error
	connected     bool
}

func NewTestBroker(baseTopic string) *TestBroker {
	return &TestBroker{
		topics:        NewTopics(baseTopic),
		subscriptions: make(map[string]func(string, []byte)),
	}
}

func (b *TestBroker) Topics() Topics {
	return b.topics
}

func (b *TestBroker) OnConnectionLost(fn func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onLost = fn
}

func (b *TestBroker) FailConnect(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectErr = err
}

func (b *TestBroker) Connect(continuation func(error), _ time.Duration) {
	b.mu.Lock()
	err := b.connectErr
	b.connected = err == nil
	b.mu.Unlock()
	go continuation(err)
}

func (b *TestBroker) Publish(topic string, payload any, _ byte, retain bool, continuation func(error), _ time.Duration) {
	var text string
	switch p := payload.(type) {
	case string:
		text = p
	case []byte:
		text = string(p)
	}
	b.mu.Lock()
	b.published = append(b.published, PublishedMessage{Topic: topic, Payload: text, Retain: retain})
	b.mu.Unlock()
	go continuation(nil)
}

func (b *TestBroker) Subscribe(topic string, _ byte, handler func(topic string, payload []byte), continuation func(error), _ time.Duration) {
	b.mu.Lock()
	b.subscriptions[topic] = handler
	b.mu.Unlock()
	go continuation(nil)
}

func (b *TestBroker) Disconnect(_ time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

// Deliver hands a message to every subscription.
func (b *TestBroker) Deliver(topic string, payload string) {
	b.mu.Lock()
	handlers := make([]func(string, []byte), 0, len(b.subscriptions))
	for _, h := range b.subscriptions {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(topic, []byte(payload))
	}
}

func (b *TestBroker) LoseConnection(err error) {
	b.mu.Lock()
	fn := b.onLost
	b.connected = false
	b.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (b *TestBroker) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *TestBroker) Published() []PublishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PublishedMessage(nil), b.published...)
}

// LastPublished returns the latest payload published on topic.
func (b *TestBroker) LastPublished(topic string) (PublishedMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.published) - 1; i >= 0; i-- {
		if b.published[i].Topic == topic {
			return b.published[i], true
		}
	}
	return PublishedMessage{}, false
}
