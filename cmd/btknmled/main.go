// Command btknmled runs the HID-over-GATT keyboard/mouse peripheral
// daemon: it brings up a Bluetooth LE controller as a bonded,
// privacy-enabled HID peripheral and streams reports from an external
// input source to whichever central has bonded with it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/btknmle/btknmle/internal/btsocket"
	"github.com/btknmle/btknmle/internal/inputsrc"
	"github.com/btknmle/btknmle/internal/keystore"
	"github.com/btknmle/btknmle/internal/mgmtpkt"
	"github.com/btknmle/btknmle/internal/supervisor"
)

func main() {
	app := cli.NewApp()
	app.Name = "btknmled"
	app.Usage = "HID-over-GATT keyboard/mouse peripheral daemon"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "var-file", Value: "/var/lib/btknmle/db.toml", Usage: "path to the bonded-key TOML store"},
		cli.UintFlag{Name: "device-id", Value: 0, Usage: "HCI controller index to drive"},
		cli.BoolFlag{Name: "grab", Usage: "request exclusive access to the input devices while bonded"},
		cli.StringFlag{Name: "keyboard-socket", Value: "/run/btknmle/keyboard.sock", Usage: "unix datagram socket carrying keyboard reports"},
		cli.StringFlag{Name: "mouse-socket", Value: "/run/btknmle/mouse.sock", Usage: "unix datagram socket carrying mouse reports"},
		cli.StringFlag{Name: "control-socket", Value: "", Usage: "unix datagram socket to notify of grab/ungrab (optional)"},
		cli.BoolFlag{Name: "v", Usage: "info-level logging"},
		cli.BoolFlag{Name: "D", Usage: "debug-level logging"},
		cli.BoolFlag{Name: "T", Usage: "trace-level logging"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, supervisor.ErrShutdown) {
			os.Exit(0)
		}
		log.WithError(err).Error("btknmled: exiting")
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log.SetLevel(log.WarnLevel)
	switch {
	case c.Bool("T"):
		log.SetLevel(log.TraceLevel)
	case c.Bool("D"):
		log.SetLevel(log.DebugLevel)
	case c.Bool("v"):
		log.SetLevel(log.InfoLevel)
	}
	logger := log.NewEntry(log.StandardLogger())

	store, err := keystore.Open(c.String("var-file"))
	if err != nil {
		return fmt.Errorf("btknmled: opening key store: %w", err)
	}

	mgmtConn, err := btsocket.OpenMGMT()
	if err != nil {
		return fmt.Errorf("btknmled: opening MGMT socket: %w", err)
	}

	deviceID := mgmtpkt.ControllerIndex(c.Uint("device-id"))
	devAddr, err := readControllerAddress(mgmtConn, deviceID)
	if err != nil {
		mgmtConn.Close()
		return fmt.Errorf("btknmled: reading controller address: %w", err)
	}

	l2capListener, err := btsocket.ListenATT(devAddr, btsocket.SecurityBoundMitm)
	if err != nil {
		mgmtConn.Close()
		return fmt.Errorf("btknmled: opening ATT listener: %w", err)
	}

	input, err := inputsrc.OpenStream(c.String("keyboard-socket"), c.String("mouse-socket"), c.String("control-socket"), logger)
	if err != nil {
		mgmtConn.Close()
		l2capListener.Close()
		return fmt.Errorf("btknmled: opening input source: %w", err)
	}

	sv := supervisor.New(mgmtConn, listenerAdapter{l2capListener}, store, input, supervisor.Options{
		DeviceID: deviceID,
		Grab:     c.Bool("grab"),
	}, logger)

	ctx := context.Background()
	err = sv.Run(ctx)
	sv.Close()
	input.Close()
	if errors.Is(err, supervisor.ErrShutdown) {
		return err
	}
	if err != nil {
		return fmt.Errorf("btknmled: %w", err)
	}
	return nil
}

// readControllerAddress performs a single, ad-hoc ReadControllerInformation
// round trip directly over mgmtConn, before any mgmt.Client owns the
// socket's read loop, since the ATT listener needs the controller's
// own address to bind to and that address is only known once this
// call returns.
func readControllerAddress(conn io.ReadWriteCloser, index mgmtpkt.ControllerIndex) ([6]byte, error) {
	pkt := mgmtpkt.Build(index, mgmtpkt.ReadControllerInformation{})
	if _, err := conn.Write(pkt.Encode()); err != nil {
		return [6]byte{}, fmt.Errorf("writing command: %w", err)
	}

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return [6]byte{}, fmt.Errorf("reading reply: %w", err)
		}
		reply, err := mgmtpkt.Decode(buf[:n])
		if err != nil {
			continue
		}
		if reply.Code != mgmtpkt.EvtCommandComplete {
			continue
		}
		cc, err := mgmtpkt.DecodeCommandComplete(reply.Params)
		if err != nil || cc.CommandCode != mgmtpkt.CmdReadControllerInformation {
			continue
		}
		if !cc.Status.OK() {
			return [6]byte{}, cc.Status
		}
		ci, err := mgmtpkt.DecodeControllerInformation(cc.Params)
		if err != nil {
			return [6]byte{}, fmt.Errorf("decoding controller information: %w", err)
		}
		return ci.Address.Octets, nil
	}
}

// listenerAdapter satisfies supervisor.Listener over the concrete
// *btsocket.L2CAPListener, whose Accept returns the concrete
// *btsocket.L2CAPConn rather than an interface.
type listenerAdapter struct {
	l *btsocket.L2CAPListener
}

func (a listenerAdapter) Accept() (io.ReadWriteCloser, [6]byte, error) {
	conn, addr, err := a.l.Accept()
	if err != nil {
		return nil, addr, err
	}
	return conn, addr, nil
}

func (a listenerAdapter) Close() error { return a.l.Close() }
