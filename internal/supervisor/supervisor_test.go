package supervisor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/btknmle/btknmle/internal/btaddr"
	"github.com/btknmle/btknmle/internal/inputsrc"
	"github.com/btknmle/btknmle/internal/keystore"
	"github.com/btknmle/btknmle/internal/mgmtpkt"
)

func pushPasskeyRequest(conn *fakeConn, addr btaddr.Address) {
	ev := mgmtpkt.UserPasskeyRequestEvent{Address: addr, AddressType: btaddr.LeRandom}
	pkt := mgmtpkt.Packet{Code: mgmtpkt.EvtUserPasskeyRequest, Index: mgmtpkt.ControllerIndex(0), Params: ev.Encode()}
	conn.readc <- pkt.Encode()
}

type fakeConn struct {
	readc  chan []byte
	writec chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{readc: make(chan []byte, 32), writec: make(chan []byte, 32)}
}

func (f *fakeConn) Read(b []byte) (int, error) {
	r, ok := <-f.readc
	if !ok {
		return 0, errClosed{}
	}
	return copy(b, r), nil
}

func (f *fakeConn) Write(b []byte) (int, error) {
	f.writec <- append([]byte(nil), b...)
	return len(b), nil
}

func (f *fakeConn) Close() error {
	close(f.readc)
	return nil
}

type errClosed struct{}

func (errClosed) Error() string { return "fakeConn: closed" }

func runFakeController(t *testing.T, conn *fakeConn, stop <-chan struct{}) {
	t.Helper()
	go func() {
		ci := make([]byte, 6+1+2+4+4+3+mgmtpkt.CompleteNameLen+mgmtpkt.ShortNameLen)
		for {
			select {
			case raw := <-conn.writec:
				pkt, err := mgmtpkt.Decode(raw)
				if err != nil {
					t.Errorf("fake controller: malformed packet: %v", err)
					return
				}
				var params []byte
				switch pkt.Code {
				case mgmtpkt.CmdReadControllerInformation:
					params = ci
				case mgmtpkt.CmdAddAdvertising:
					params = []byte{1}
				}
				cc := mgmtpkt.CommandCompleteEvent{CommandCode: pkt.Code, Status: mgmtpkt.StatusSuccess, Params: params}
				reply := mgmtpkt.Packet{Code: mgmtpkt.EvtCommandComplete, Index: pkt.Index, Params: cc.Encode()}
				conn.readc <- reply.Encode()
			case <-stop:
				return
			}
		}
	}()
}

type fakeListener struct {
	connc  chan acceptResult
	closed bool
}

func newFakeListener() *fakeListener {
	return &fakeListener{connc: make(chan acceptResult, 4)}
}

func (f *fakeListener) Accept() (io.ReadWriteCloser, [6]byte, error) {
	r, ok := <-f.connc
	if !ok {
		return nil, [6]byte{}, errors.New("supervisor: listener closed")
	}
	return r.conn, r.addr, r.err
}

func (f *fakeListener) Close() error {
	if !f.closed {
		f.closed = true
		close(f.connc)
	}
	return nil
}

func newTestSupervisor(t *testing.T, mgmtConn *fakeConn, listener *fakeListener, input inputsrc.Source, grab bool) *Supervisor {
	t.Helper()
	store, err := keystore.Open(filepath.Join(t.TempDir(), "db.toml"))
	if err != nil {
		t.Fatal(err)
	}
	return New(mgmtConn, listener, store, input, Options{DeviceID: mgmtpkt.ControllerIndex(0), Grab: grab}, nil)
}

func attWriteRequest(handle uint16, value []byte) []byte {
	b := []byte{0x12, byte(handle), byte(handle >> 8)}
	return append(b, value...)
}

func TestRunServesAuthenticatedPeerAndStopsOnCancel(t *testing.T) {
	mgmtConn := newFakeConn()
	stop := make(chan struct{})
	defer close(stop)
	runFakeController(t, mgmtConn, stop)

	listener := newFakeListener()
	input := inputsrc.NewFake()

	sv := newTestSupervisor(t, mgmtConn, listener, input, true)

	peerAddr, _ := btaddr.ParseAddress("00:11:22:33:44:55")
	if err := sv.store.AddLTK(btaddr.LongTermKey{Address: peerAddr, AddressType: btaddr.LeRandom, KeyType: btaddr.AuthenticatedKey}); err != nil {
		t.Fatal(err)
	}

	rawConn := newFakeConn()
	listener.connc <- acceptResult{conn: rawConn, addr: peerAddr.Octets}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- sv.Run(ctx) }()

	// Enable notifications on the keyboard characteristic, then push a
	// report and confirm it reaches the peer as a notification.
	handles := sv.HIDHandles()
	rawConn.readc <- attWriteRequest(handles.KeyboardCCCD, []byte{0x01, 0x00})
	select {
	case resp := <-rawConn.writec:
		if len(resp) == 0 || resp[0] != 0x13 { // WriteResponse opcode
			t.Fatalf("got %x, want a WriteResponse", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for CCCD write response")
	}

	if !input.Grabbed() {
		t.Fatal("expected the input source to be grabbed once a bonded peer connected")
	}

	report := inputsrc.KeyboardReport{0x00, 0x00, inputsrc.KeycodeDigit1, 0, 0, 0, 0, 0}
	input.PushKeyboard(report)

	select {
	case notif := <-rawConn.writec:
		want := append([]byte{0x1B, byte(handles.KeyboardValue), byte(handles.KeyboardValue >> 8)}, report[:]...)
		if !bytes.Equal(notif, want) {
			t.Fatalf("got % x want % x", notif, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for keyboard notification")
	}

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	if input.UngrabCount() != 1 {
		t.Fatalf("got %d ungrabs, want 1", input.UngrabCount())
	}
}

// Keystrokes used to type a passkey must not leak into the HID
// notification pipeline: while a passkey request is pending, the peer
// that asked for it has no notify-enabled connection at all yet in the
// real flow, but even so this supervisor must not forward them once a
// request is pending on any connection.
func TestKeyboardReportsSuppressedWhilePasskeyPending(t *testing.T) {
	mgmtConn := newFakeConn()
	stop := make(chan struct{})
	defer close(stop)
	runFakeController(t, mgmtConn, stop)

	listener := newFakeListener()
	input := inputsrc.NewFake()

	sv := newTestSupervisor(t, mgmtConn, listener, input, false)

	peerAddr, _ := btaddr.ParseAddress("00:11:22:33:44:55")
	if err := sv.store.AddLTK(btaddr.LongTermKey{Address: peerAddr, AddressType: btaddr.LeRandom, KeyType: btaddr.AuthenticatedKey}); err != nil {
		t.Fatal(err)
	}

	rawConn := newFakeConn()
	listener.connc <- acceptResult{conn: rawConn, addr: peerAddr.Octets}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- sv.Run(ctx) }()

	handles := sv.HIDHandles()
	rawConn.readc <- attWriteRequest(handles.KeyboardCCCD, []byte{0x01, 0x00})
	select {
	case resp := <-rawConn.writec:
		if len(resp) == 0 || resp[0] != 0x13 {
			t.Fatalf("got %x, want a WriteResponse", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for CCCD write response")
	}

	pushPasskeyRequest(mgmtConn, peerAddr)

	// Give the event dispatcher a moment to apply the event before the
	// report is pushed; Run() isn't ordered with this test goroutine.
	for i := 0; i < 50 && !sv.gap.PasskeyPending(); i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if !sv.gap.PasskeyPending() {
		t.Fatal("timed out waiting for the passkey request to be applied")
	}

	digit := inputsrc.KeyboardReport{0x00, 0x00, inputsrc.KeycodeDigit1, 0, 0, 0, 0, 0}
	input.PushKeyboard(digit)

	select {
	case notif := <-rawConn.writec:
		t.Fatalf("unexpected notification while a passkey request is pending: % x", notif)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case <-runErr:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestUnbondedPeerIsDropped(t *testing.T) {
	mgmtConn := newFakeConn()
	stop := make(chan struct{})
	defer close(stop)
	runFakeController(t, mgmtConn, stop)

	listener := newFakeListener()
	input := inputsrc.NewFake()
	sv := newTestSupervisor(t, mgmtConn, listener, input, false)

	unbonded, _ := btaddr.ParseAddress("AA:AA:AA:AA:AA:AA")
	rawConn := newFakeConn()
	listener.connc <- acceptResult{conn: rawConn, addr: unbonded.Octets}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sv.Run(ctx)

	select {
	case _, ok := <-rawConn.readc:
		if ok {
			t.Fatal("unexpected: readc should be closed by the dropped connection, not read from")
		}
	case <-time.After(300 * time.Millisecond):
	}

	// The connection must have been closed (Close() closes readc).
	select {
	case _, ok := <-rawConn.readc:
		if ok {
			t.Fatal("expected the unbonded connection's socket to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the dropped connection to be closed")
	}
}
