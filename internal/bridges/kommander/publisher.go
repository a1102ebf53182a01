package kommander

import (
	"sync"
	"sync/atomic"
	"time"
)

// Publish queue defaults.
const (
	publishQueueSize  = 256
	publishDrainLimit = 5 * time.Second
)

type pendingPublish struct {
	topic   string
	payload []byte
}

// publisher hands retained MQTT publishes to a single worker so the
// connection reactor never waits on the broker. Messages keep their
// enqueue order.
type publisher struct {
	client MQTTClient
	qos    byte
	queue  chan pendingPublish
	stop   chan struct{}
	done   chan struct{}

	dropped   atomic.Uint64
	startOnce sync.Once
	stopOnce  sync.Once

	logDebug func(msg string, keysAndValues ...any)
	logWarn  func(msg string, keysAndValues ...any)
}

func newPublisher(client MQTTClient, qos byte) *publisher {
	return &publisher{
		client: client,
		qos:    qos,
		queue:  make(chan pendingPublish, publishQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// start launches the worker. Messages queued earlier are sent first.
func (p *publisher) start() {
	p.startOnce.Do(func() { go p.run() })
}

// enqueue queues a retained publish without blocking. When the queue is
// full the message is dropped.
func (p *publisher) enqueue(topic string, payload []byte) {
	select {
	case p.queue <- pendingPublish{topic: topic, payload: payload}:
	default:
		if p.dropped.Add(1) == 1 && p.logWarn != nil {
			p.logWarn("MQTT publish queue full, dropping messages", "topic", topic)
		}
	}
}

// close sends what is queued and stops the worker. It waits at most
// publishDrainLimit. A publisher that was never started returns at once.
func (p *publisher) close() {
	started := true
	p.startOnce.Do(func() {
		started = false
		close(p.done)
	})
	p.stopOnce.Do(func() { close(p.stop) })
	if !started {
		return
	}

	select {
	case <-p.done:
	case <-time.After(publishDrainLimit):
		if p.logWarn != nil {
			p.logWarn("MQTT publish queue not drained", "pending", len(p.queue))
		}
	}
}

func (p *publisher) run() {
	defer close(p.done)
	for {
		select {
		case msg := <-p.queue:
			p.send(msg)
		case <-p.stop:
			for {
				select {
				case msg := <-p.queue:
					p.send(msg)
				default:
					return
				}
			}
		}
	}
}

func (p *publisher) send(msg pendingPublish) {
	if err := p.client.Publish(msg.topic, msg.payload, p.qos, true); err != nil && p.logDebug != nil {
		p.logDebug("message not published", "topic", msg.topic, "error", err)
	}
}
