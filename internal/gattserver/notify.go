package gattserver

import (
	"github.com/btknmle/btknmle/internal/attpkt"
	"github.com/btknmle/btknmle/internal/gattdb"
)

// Sink is an owned handle for pushing HandleValueNotification values
// for one characteristic value handle. The CCCD gate is re-checked on
// every Push so a peer toggling notifications off takes effect
// immediately, not just at registration time.
type Sink struct {
	conn        *Connection
	valueHandle uint16
	cccdHandle  uint16
	queue       chan []byte
}

// Notifier registers a notification Sink for a characteristic, gated
// by the Notification bit of the CCCD at cccdHandle.
func (c *Connection) Notifier(valueHandle, cccdHandle uint16) *Sink {
	s := &Sink{conn: c, valueHandle: valueHandle, cccdHandle: cccdHandle, queue: make(chan []byte, notifyQueueDepth)}
	c.wg.Add(1)
	go c.notifyLoop(s)
	return s
}

// Push enqueues value for delivery. It fails fast without blocking:
// ErrNotificationsDisabled if the peer has not opted in, ErrQueueFull
// if the queue has not drained — both are dropped samples, not errors
// the input pipeline should retry.
func (s *Sink) Push(value []byte) error {
	if s.conn.session.CCCDValue(s.cccdHandle)&gattdb.CCCDNotification == 0 {
		return ErrNotificationsDisabled
	}
	select {
	case s.queue <- append([]byte(nil), value...):
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Connection) notifyLoop(s *Sink) {
	defer c.wg.Done()
	for {
		select {
		case v := <-s.queue:
			c.respond(attpkt.HandleValueNotification{Handle: s.valueHandle, Value: v})
		case <-c.done:
			return
		}
	}
}
