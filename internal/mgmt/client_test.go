package mgmt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btknmle/btknmle/internal/mgmtpkt"
)

// fakeConn is a channel-backed io.ReadWriteCloser standing in for the
// real HCI control socket, the way the teacher's l2cap tests stand in
// for a real L2CAP pipe with readc/writec channels.
type fakeConn struct {
	readc  chan []byte
	writec chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{readc: make(chan []byte, 8), writec: make(chan []byte, 8)}
}

func (f *fakeConn) Read(b []byte) (int, error) {
	r, ok := <-f.readc
	if !ok {
		return 0, errClosed
	}
	return copy(b, r), nil
}

func (f *fakeConn) Write(b []byte) (int, error) {
	cp := append([]byte(nil), b...)
	f.writec <- cp
	return len(b), nil
}

func (f *fakeConn) Close() error {
	close(f.readc)
	return nil
}

var errClosed = &closedErr{}

type closedErr struct{}

func (*closedErr) Error() string { return "fakeConn: closed" }

func TestCallResolvedByCommandComplete(t *testing.T) {
	conn := newFakeConn()
	c := New(conn, nil)
	defer c.Close()

	resultc := make(chan []byte, 1)
	errc := make(chan error, 1)
	go func() {
		b, err := c.Call(context.Background(), mgmtpkt.ControllerIndex(0), mgmtpkt.SetPowered{Powered: true})
		resultc <- b
		errc <- err
	}()

	sent := <-conn.writec
	pkt, err := mgmtpkt.Decode(sent)
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Code != mgmtpkt.CmdSetPowered {
		t.Fatalf("got code %v", pkt.Code)
	}

	cc := mgmtpkt.CommandCompleteEvent{CommandCode: mgmtpkt.CmdSetPowered, Status: mgmtpkt.StatusSuccess, Params: []byte{1, 2, 3, 4}}
	reply := mgmtpkt.Packet{Code: mgmtpkt.EvtCommandComplete, Index: 0, Params: cc.Encode()}
	conn.readc <- reply.Encode()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Call to resolve")
	}
	if got := <-resultc; string(got) != string(cc.Params) {
		t.Fatalf("got %v want %v", got, cc.Params)
	}
}

func TestCallFailsOnCommandStatusError(t *testing.T) {
	conn := newFakeConn()
	c := New(conn, nil)
	defer c.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), mgmtpkt.ControllerIndex(0), mgmtpkt.SetPowered{Powered: true})
		errc <- err
	}()

	<-conn.writec
	cs := mgmtpkt.CommandStatusEvent{CommandCode: mgmtpkt.CmdSetPowered, Status: mgmtpkt.StatusBusy}
	reply := mgmtpkt.Packet{Code: mgmtpkt.EvtCommandStatus, Index: 0, Params: cs.Encode()}
	conn.readc <- reply.Encode()

	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("expected an error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Call to fail")
	}
}

func TestSocketClosureFailsOutstandingCalls(t *testing.T) {
	conn := newFakeConn()
	c := New(conn, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), mgmtpkt.ControllerIndex(0), mgmtpkt.SetPowered{Powered: true})
		errc <- err
	}()

	<-conn.writec // wait for the call to be registered in c.sent

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrTransportClosed) {
			t.Fatalf("got %v, want ErrTransportClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Call did not unblock when the socket closed")
	}
}

func TestUnrecognisedPacketsSurfaceAsEvents(t *testing.T) {
	conn := newFakeConn()
	c := New(conn, nil)
	defer c.Close()

	ns := mgmtpkt.NewSettingsEvent{Settings: mgmtpkt.SettingPowered}
	pkt := mgmtpkt.Packet{Code: mgmtpkt.EvtNewSettings, Index: 3, Params: ns.Encode()}
	conn.readc <- pkt.Encode()

	select {
	case ev := <-c.Events():
		if ev.Index != 3 || ev.Code != mgmtpkt.EvtNewSettings {
			t.Fatalf("got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
