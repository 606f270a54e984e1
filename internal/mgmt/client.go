// Package mgmt drives the Linux kernel MGMT protocol: it sends commands
// and correlates the CommandStatus/CommandComplete event that answers
// each one, the way the teacher's linux/internal/cmd.Cmd correlates HCI
// command events. Every Call is written as soon as it is made; a second
// call with the same (controller, command code) is not held back while
// the first is outstanding, and replies with that key are matched to
// the outstanding calls in the order they were sent.
// Everything else the kernel emits is handed to callers as an Event.
package mgmt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/btknmle/btknmle/internal/mgmtpkt"
)

// ErrTransportClosed is the error a blocked Call fails with when the
// MGMT socket's read loop exits before a reply arrives: the peer end
// can no longer deliver a CommandStatus/CommandComplete for it.
var ErrTransportClosed = errors.New("mgmt: transport closed")

// Event is an MGMT datagram that is not a reply to an outstanding
// command: a broadcast notification about some controller.
type Event struct {
	Index mgmtpkt.ControllerIndex
	Code  uint16
	Body  []byte
}

type pendingCmd struct {
	index mgmtpkt.ControllerIndex
	code  uint16
	done  chan reply
}

type reply struct {
	status       mgmtpkt.Status
	params       []byte
	transportErr error
}

// Client owns the MGMT socket's read loop and the FIFO of commands
// awaiting a reply.
type Client struct {
	conn   io.ReadWriteCloser
	log    *log.Entry
	events chan Event

	mu   sync.Mutex
	sent []*pendingCmd
}

// New starts the client's read loop over conn. conn is typically a
// *btsocket.MGMTConn but any ReadWriteCloser works, which is how the
// package's tests exercise it without a real HCI socket.
func New(conn io.ReadWriteCloser, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	c := &Client{
		conn:   conn,
		log:    logger,
		events: make(chan Event, 64),
	}
	go c.readLoop()
	return c
}

// Call sends cmd against controller index and blocks for its reply.
// A non-success Status is returned as an error.
func (c *Client) Call(ctx context.Context, index mgmtpkt.ControllerIndex, cmd mgmtpkt.Command) ([]byte, error) {
	p := &pendingCmd{index: index, code: cmd.Code(), done: make(chan reply, 1)}

	c.mu.Lock()
	c.sent = append(c.sent, p)
	c.mu.Unlock()

	pkt := mgmtpkt.Build(index, cmd)
	raw := pkt.Encode()
	c.log.WithFields(log.Fields{
		"controller": index,
		"command":    mgmtpkt.CommandName(cmd.Code()),
	}).Debug("mgmt: sending command")
	if _, err := c.conn.Write(raw); err != nil {
		c.removePending(p)
		return nil, fmt.Errorf("mgmt: write: %w", err)
	}

	select {
	case r := <-p.done:
		if r.transportErr != nil {
			return r.params, r.transportErr
		}
		if !r.status.OK() {
			return r.params, r.status
		}
		return r.params, nil
	case <-ctx.Done():
		c.removePending(p)
		return nil, ctx.Err()
	}
}

// Events returns the channel of asynchronous MGMT notifications.
func (c *Client) Events() <-chan Event { return c.events }

// Close releases the underlying socket. The read loop's exit, whether
// triggered by this or by the peer end going away on its own, fails
// any command still blocked in Call with ErrTransportClosed.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) removePending(target *pendingCmd) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.sent {
		if p == target {
			c.sent = append(c.sent[:i], c.sent[i+1:]...)
			return
		}
	}
}

func (c *Client) resolve(index mgmtpkt.ControllerIndex, code uint16, status mgmtpkt.Status, params []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.sent {
		if p.index == index && p.code == code {
			c.sent = append(c.sent[:i], c.sent[i+1:]...)
			p.done <- reply{status: status, params: params}
			return
		}
	}
	c.log.WithFields(log.Fields{
		"controller": index,
		"command":    mgmtpkt.CommandName(code),
	}).Warn("mgmt: reply to a command we never sent (or already resolved)")
}

func (c *Client) readLoop() {
	buf := make([]byte, 1024)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				c.log.WithError(err).Warn("mgmt: socket read failed, stopping read loop")
			}
			c.failPending(err)
			close(c.events)
			return
		}
		pkt, err := mgmtpkt.Decode(buf[:n])
		if err != nil {
			c.log.WithError(err).Warn("mgmt: dropping malformed datagram")
			continue
		}
		c.dispatch(pkt)
	}
}

// failPending delivers ErrTransportClosed to every command still
// waiting on a reply; called once, from readLoop's exit path, since no
// further CommandStatus/CommandComplete can ever arrive for them.
func (c *Client) failPending(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.sent {
		p.done <- reply{transportErr: fmt.Errorf("%w: %v", ErrTransportClosed, cause)}
	}
	c.sent = nil
}

func (c *Client) dispatch(pkt mgmtpkt.Packet) {
	switch pkt.Code {
	case mgmtpkt.EvtCommandComplete:
		cc, err := mgmtpkt.DecodeCommandComplete(pkt.Params)
		if err != nil {
			c.log.WithError(err).Warn("mgmt: malformed CommandComplete")
			return
		}
		c.resolve(pkt.Index, cc.CommandCode, cc.Status, cc.Params)
	case mgmtpkt.EvtCommandStatus:
		cs, err := mgmtpkt.DecodeCommandStatus(pkt.Params)
		if err != nil {
			c.log.WithError(err).Warn("mgmt: malformed CommandStatus")
			return
		}
		c.resolve(pkt.Index, cs.CommandCode, cs.Status, nil)
	default:
		c.events <- Event{Index: pkt.Index, Code: pkt.Code, Body: pkt.Params}
	}
}
