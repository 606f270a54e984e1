// Package supervisor is the daemon's top-level composition: it runs
// the GAP setup sequence once, then keeps three concurrent tasks
// alive for the rest of the process lifetime — the MGMT event
// dispatcher, the GATT accept loop, and the signal-driven shutdown
// watcher — the way the teacher's top-level run loop ties its
// transport, protocol and lifecycle pieces together.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/btknmle/btknmle/internal/btaddr"
	"github.com/btknmle/btknmle/internal/gap"
	"github.com/btknmle/btknmle/internal/gattdb"
	"github.com/btknmle/btknmle/internal/gattserver"
	"github.com/btknmle/btknmle/internal/hogp"
	"github.com/btknmle/btknmle/internal/inputsrc"
	"github.com/btknmle/btknmle/internal/keystore"
	"github.com/btknmle/btknmle/internal/mgmt"
	"github.com/btknmle/btknmle/internal/mgmtpkt"
)

// ErrShutdown is returned by Run when termination was requested by a
// signal rather than caused by a failure; callers use it to choose
// exit code 0.
var ErrShutdown = errors.New("supervisor: shutdown requested")

// ErrNotBonded is the policy error raised when an accepted connection
// is not covered by an authenticated LTK in the key store.
var ErrNotBonded = errors.New("supervisor: peer is not covered by an authenticated bond")

// shutdownSignals are the signals that end the daemon cleanly, per
// spec.md's external interface.
var shutdownSignals = []os.Signal{
	syscall.SIGALRM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGPIPE,
	syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2,
}

// Listener accepts ATT bearers; *btsocket.L2CAPListener satisfies it
// through a thin adapter at the composition root, keeping this package
// free of a Linux build tag so it can be unit tested anywhere.
type Listener interface {
	Accept() (io.ReadWriteCloser, [6]byte, error)
	Close() error
}

// Options configures one Supervisor instance.
type Options struct {
	DeviceID mgmtpkt.ControllerIndex
	Grab     bool
}

// Supervisor owns every long-lived piece of the running daemon.
type Supervisor struct {
	store    *keystore.Store
	client   *mgmt.Client
	gap      *gap.Orchestrator
	gattSrv  *gattserver.Server
	listener Listener
	input    inputsrc.Source
	grab     bool
	log      *log.Entry
	handles  hogp.Handles
}

// New assembles a Supervisor: it opens an MGMT client over mgmtConn,
// builds the HID-over-GATT database exactly once, and wires the GAP
// orchestrator and GATT server against it.
func New(mgmtConn io.ReadWriteCloser, listener Listener, store *keystore.Store, input inputsrc.Source, opts Options, logger *log.Entry) *Supervisor {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	client := mgmt.New(mgmtConn, logger)
	orchestrator := gap.New(client, store, opts.DeviceID, logger)

	builder := gattdb.NewBuilder(0)
	handles := hogp.Build(builder)
	db := builder.Build()

	return &Supervisor{
		store:    store,
		client:   client,
		gap:      orchestrator,
		gattSrv:  gattserver.New(db, logger),
		listener: listener,
		input:    input,
		grab:     opts.Grab,
		log:      logger,
		handles:  handles,
	}
}

// HIDHandles exposes the value/CCCD handles of the published HID
// characteristics, mainly so tests can drive notifications directly.
func (sv *Supervisor) HIDHandles() hogp.Handles { return sv.handles }

// Close releases the MGMT client and listener; Run does not call this
// itself, since the caller owns their lifetime beyond a single Run.
func (sv *Supervisor) Close() error {
	lerr := sv.listener.Close()
	cerr := sv.client.Close()
	if lerr != nil {
		return lerr
	}
	return cerr
}

// Run performs the GAP setup sequence once, then blocks running the
// event dispatcher, accept loop and signal watcher until one of them
// fails or a shutdown signal arrives.
func (sv *Supervisor) Run(ctx context.Context) error {
	if err := sv.gap.Setup(ctx); err != nil {
		return fmt.Errorf("supervisor: setup: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sv.runSignalWatcher(gctx) })
	g.Go(func() error { return sv.runEventLoop(gctx) })
	g.Go(func() error { return sv.runAcceptLoop(gctx) })
	return g.Wait()
}

func (sv *Supervisor) runSignalWatcher(ctx context.Context) error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, shutdownSignals...)
	defer signal.Stop(sigc)
	select {
	case sig := <-sigc:
		sv.log.WithField("signal", sig).Info("supervisor: shutting down on signal")
		return ErrShutdown
	case <-ctx.Done():
		return nil
	}
}

func (sv *Supervisor) runEventLoop(ctx context.Context) error {
	for {
		select {
		case ev, ok := <-sv.client.Events():
			if !ok {
				return fmt.Errorf("supervisor: mgmt event stream closed")
			}
			if err := sv.gap.HandleEvent(ctx, ev); err != nil {
				sv.log.WithError(err).Warn("supervisor: mgmt event handling failed")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

type acceptResult struct {
	conn io.ReadWriteCloser
	addr [6]byte
	err  error
}

func (sv *Supervisor) accept(ctx context.Context) (io.ReadWriteCloser, [6]byte, error) {
	resultc := make(chan acceptResult, 1)
	go func() {
		conn, addr, err := sv.listener.Accept()
		resultc <- acceptResult{conn: conn, addr: addr, err: err}
	}()
	select {
	case r := <-resultc:
		return r.conn, r.addr, r.err
	case <-ctx.Done():
		sv.listener.Close()
		return nil, [6]byte{}, ctx.Err()
	}
}

func (sv *Supervisor) runAcceptLoop(ctx context.Context) error {
	for {
		if err := sv.gap.StartAdvertising(ctx); err != nil {
			return fmt.Errorf("supervisor: start advertising: %w", err)
		}

		rawConn, addr, err := sv.accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("supervisor: accept: %w", err)
		}

		if err := sv.gap.StopAdvertising(ctx); err != nil {
			sv.log.WithError(err).Warn("supervisor: stop advertising failed")
		}

		if err := sv.serveConnection(ctx, rawConn, addr); err != nil {
			sv.log.WithError(err).Warn("supervisor: connection ended")
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (sv *Supervisor) serveConnection(ctx context.Context, rawConn io.ReadWriteCloser, addr [6]byte) error {
	peer := btaddr.Address{Octets: addr}
	authed, err := sv.gap.HasBondedAuthenticatedKey(peer)
	if err != nil {
		rawConn.Close()
		return fmt.Errorf("supervisor: checking bond for %s: %w", peer, err)
	}
	if !authed {
		rawConn.Close()
		return fmt.Errorf("%w: %s", ErrNotBonded, peer)
	}

	conn := sv.gattSrv.Accept(rawConn)
	conn.SetAuthenticated(true)

	kbSink := conn.Notifier(sv.handles.KeyboardValue, sv.handles.KeyboardCCCD)
	msSink := conn.Notifier(sv.handles.MouseValue, sv.handles.MouseCCCD)

	grabbed := false
	if sv.grab {
		if err := sv.input.Grab(); err != nil {
			sv.log.WithError(err).Warn("supervisor: grab failed")
		} else {
			grabbed = true
		}
	}
	if grabbed {
		defer sv.input.Ungrab()
	}

	inputCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	kbReports := sv.input.KeyboardReports(inputCtx)
	msReports := sv.input.MouseReports(inputCtx)

	for {
		select {
		case r, ok := <-kbReports:
			if !ok {
				conn.Close()
				return nil
			}
			sv.handleKeyboardReport(ctx, r, kbSink)
		case r, ok := <-msReports:
			if !ok {
				conn.Close()
				return nil
			}
			if err := msSink.Push(r[:]); err != nil && !errors.Is(err, gattserver.ErrNotificationsDisabled) {
				sv.log.WithError(err).Debug("supervisor: mouse notification dropped")
			}
		case <-conn.Done():
			return nil
		case <-ctx.Done():
			conn.Close()
			return nil
		}
	}
}

func (sv *Supervisor) handleKeyboardReport(ctx context.Context, r inputsrc.KeyboardReport, sink *gattserver.Sink) {
	if sv.gap.PasskeyPending() {
		for _, code := range r.PressedKeycodes() {
			if d, ok := inputsrc.DigitForKeycode(code); ok {
				sv.gap.PasskeyDigit(d)
				continue
			}
			if code == inputsrc.KeycodeEnter {
				if err := sv.gap.PasskeyEnter(ctx); err != nil {
					sv.log.WithError(err).Warn("supervisor: passkey reply failed")
				}
			}
		}
		return
	}
	if err := sink.Push(r[:]); err != nil && !errors.Is(err, gattserver.ErrNotificationsDisabled) {
		sv.log.WithError(err).Debug("supervisor: keyboard notification dropped")
	}
}
