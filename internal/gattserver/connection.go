// Package gattserver drives one GATT database Session per accepted
// L2CAP/ATT connection: it dispatches incoming ATT requests to the
// database and fans out server-initiated notifications, the way the
// teacher's l2cap/server pairing drives one Peripheral per central.
package gattserver

import (
	"errors"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/btknmle/btknmle/internal/attpkt"
	"github.com/btknmle/btknmle/internal/gattdb"
)

// notifyQueueDepth bounds each characteristic's pending-notification
// queue; the operational policy on overflow is to drop, not block.
const notifyQueueDepth = 16

// ErrNotificationsDisabled is returned by Sink.Push when the peer has
// not set the Notification bit in the characteristic's CCCD.
var ErrNotificationsDisabled = errors.New("gattserver: notifications disabled by peer CCCD")

// ErrQueueFull is returned by Sink.Push when the per-handle queue has
// not been drained in time; the caller should treat this as a dropped
// sample, not retry.
var ErrQueueFull = errors.New("gattserver: notification queue full")

// Server holds the immutable database template new connections open
// a Session against.
type Server struct {
	db  *gattdb.Database
	log *log.Entry
}

// New builds a Server over db.
func New(db *gattdb.Database, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Server{db: db, log: logger}
}

// Accept starts serving one connection over conn and returns
// immediately; the connection's request loop runs in the background
// until conn closes or a fatal codec error occurs.
func (srv *Server) Accept(conn io.ReadWriteCloser) *Connection {
	c := &Connection{
		conn:    conn,
		session: srv.db.NewSession(),
		log:     srv.log,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Connection is one accepted ATT bearer: a request/response loop plus
// any notification Sinks registered against it.
type Connection struct {
	conn    io.ReadWriteCloser
	session *gattdb.Session
	log     *log.Entry

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// SetAuthenticated marks the bearer as authenticated once the
// supervisor has verified the peer against a bonded authenticated LTK.
func (c *Connection) SetAuthenticated(v bool) { c.session.SetAuthenticated(v) }

// Done is closed when the connection's request loop exits.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close tears the connection down; safe to call more than once and
// from any goroutine.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	c.wg.Wait()
}

func (c *Connection) readLoop() {
	defer c.Close()
	buf := make([]byte, 512)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return
		}
		pdu, err := attpkt.Decode(buf[:n])
		if err != nil {
			if uo, ok := err.(attpkt.UnexpectedOpcode); ok {
				c.respond(attpkt.ErrorResponse{
					RequestOpcode: attpkt.Opcode(uo.Opcode),
					Handle:        0,
					Code:          attpkt.ErrRequestNotSupported,
				})
				continue
			}
			c.log.WithError(err).Warn("gattserver: malformed ATT PDU, closing connection")
			return
		}
		c.handle(pdu)
	}
}

func (c *Connection) handle(pdu attpkt.PDU) {
	switch req := pdu.(type) {
	case attpkt.ExchangeMTURequest:
		c.respond(attpkt.ExchangeMTUResponse{ServerMTU: c.session.ExchangeMTU(req.ClientMTU)})

	case attpkt.FindInformationRequest:
		pairs, err := c.session.FindInformation(req.StartHandle, req.EndHandle)
		if err != nil {
			c.fail(attpkt.OpFindInformationRequest, req.StartHandle, err)
			return
		}
		c.respond(attpkt.FindInformationResponse{Pairs: pairs})

	case attpkt.FindByTypeValueRequest:
		ranges, err := c.session.FindByTypeValue(req.StartHandle, req.EndHandle, req.Type, req.Value)
		if err != nil {
			c.fail(attpkt.OpFindByTypeValueRequest, req.StartHandle, err)
			return
		}
		c.respond(attpkt.FindByTypeValueResponse{Ranges: ranges})

	case attpkt.ReadByTypeRequest:
		data, err := c.session.ReadByType(req.StartHandle, req.EndHandle, req.Type)
		if err != nil {
			c.fail(attpkt.OpReadByTypeRequest, req.StartHandle, err)
			return
		}
		c.respond(attpkt.ReadByTypeResponse{Data: data})

	case attpkt.ReadRequest:
		v, err := c.session.Read(req.Handle)
		if err != nil {
			c.fail(attpkt.OpReadRequest, req.Handle, err)
			return
		}
		c.respond(attpkt.ReadResponse{Value: v})

	case attpkt.ReadBlobRequest:
		v, err := c.session.ReadBlob(req.Handle, req.Offset)
		if err != nil {
			c.fail(attpkt.OpReadBlobRequest, req.Handle, err)
			return
		}
		c.respond(attpkt.ReadBlobResponse{Value: v})

	case attpkt.ReadByGroupTypeRequest:
		data, err := c.session.ReadByGroupType(req.StartHandle, req.EndHandle, req.Type)
		if err != nil {
			c.fail(attpkt.OpReadByGroupTypeRequest, req.StartHandle, err)
			return
		}
		c.respond(attpkt.ReadByGroupTypeResponse{Data: data})

	case attpkt.WriteRequest:
		if err := c.session.Write(req.Handle, req.Value); err != nil {
			c.fail(attpkt.OpWriteRequest, req.Handle, err)
			return
		}
		c.respond(attpkt.WriteResponse{})

	default:
		c.log.Warnf("gattserver: peer sent a PDU kind the server never issues a request for: %T", pdu)
	}
}

func (c *Connection) fail(op attpkt.Opcode, handle uint16, err error) {
	code, ok := err.(attpkt.ErrorCode)
	if !ok {
		code = attpkt.ErrUnlikelyError
	}
	c.respond(attpkt.ErrorResponse{RequestOpcode: op, Handle: handle, Code: code})
}

func (c *Connection) respond(pdu attpkt.PDU) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(pdu.Encode()); err != nil {
		c.log.WithError(err).Warn("gattserver: write failed")
	}
}
