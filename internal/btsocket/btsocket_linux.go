//go:build linux

// Package btsocket opens the two raw Bluetooth sockets the daemon
// needs directly from Linux: the HCI control channel MGMT runs over,
// and the fixed ATT L2CAP channel the GATT server listens on. Both are
// thin wrappers around golang.org/x/sys/unix; the kernel does the
// actual protocol work.
package btsocket

import (
	"fmt"
	"io"
	"unsafe"

	"golang.org/x/sys/unix"
)

// HCIDevNone binds an HCI control socket to no specific controller;
// MGMT commands then carry the controller index in their own header.
const HCIDevNone = 0xFFFF

// attCID is the fixed L2CAP channel identifier ATT always runs on.
const attCID = 4

// optBTSecurity is SOL_BLUETOOTH's BT_SECURITY option, and the
// three link security levels it accepts, per <bluetooth/bluetooth.h>.
// x/sys/unix does not export these BT_* sockopt names, so they are
// pinned here as they are fixed kernel ABI.
const (
	optBTSecurity = 4

	levelLow    = 1
	levelMedium = 2
	levelHigh   = 3
)

// SecurityLevel selects the L2CAP channel's required link security,
// mirroring the three tiers the GAP orchestrator cares about.
type SecurityLevel uint8

const (
	SecurityNone      SecurityLevel = levelLow
	SecurityBound     SecurityLevel = levelMedium
	SecurityBoundMitm SecurityLevel = levelHigh
)

// btSecurity mirrors struct bt_security from <bluetooth/bluetooth.h>.
type btSecurity struct {
	Level   uint8
	KeySize uint8
}

func setSecurity(fd int, sec btSecurity) error {
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT,
		uintptr(fd), uintptr(unix.SOL_BLUETOOTH), uintptr(optBTSecurity),
		uintptr(unsafe.Pointer(&sec)), unsafe.Sizeof(sec), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// MGMTConn is the raw HCI control socket the mgmt package's client
// reads and writes MGMT packets over.
type MGMTConn struct {
	fd int
}

// OpenMGMT opens and binds the HCI_CHANNEL_CONTROL socket used for
// MGMT commands and events. It is not scoped to one controller; each
// MGMT packet's own header carries the controller index.
func OpenMGMT() (*MGMTConn, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, fmt.Errorf("btsocket: socket: %w", err)
	}
	sa := &unix.SockaddrHCI{Dev: HCIDevNone, Channel: unix.HCI_CHANNEL_CONTROL}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("btsocket: bind: %w", err)
	}
	return &MGMTConn{fd: fd}, nil
}

func (c *MGMTConn) Read(b []byte) (int, error)  { return unix.Read(c.fd, b) }
func (c *MGMTConn) Write(b []byte) (int, error) { return unix.Write(c.fd, b) }
func (c *MGMTConn) Close() error                { return unix.Close(c.fd) }

var _ io.ReadWriteCloser = (*MGMTConn)(nil)

// L2CAPListener accepts incoming ATT connections on the fixed ATT
// channel of a single HCI device's address.
type L2CAPListener struct {
	fd int
}

// ListenATT binds and listens on the ATT fixed channel (CID 4) against
// devAddr (the adapter's own address, in wire/little-endian octet
// order), requiring at least the given security level before a
// connection is handed back from Accept.
func ListenATT(devAddr [6]byte, security SecurityLevel) (*L2CAPListener, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET, unix.BTPROTO_L2CAP)
	if err != nil {
		return nil, fmt.Errorf("btsocket: socket: %w", err)
	}
	sa := &unix.SockaddrL2{PSM: 0, CID: attCID, Addr: devAddr}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("btsocket: bind: %w", err)
	}
	if err := setSecurity(fd, btSecurity{Level: uint8(security)}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("btsocket: setsockopt BT_SECURITY: %w", err)
	}
	if err := unix.Listen(fd, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("btsocket: listen: %w", err)
	}
	return &L2CAPListener{fd: fd}, nil
}

// Accept blocks for one incoming ATT connection.
func (l *L2CAPListener) Accept() (*L2CAPConn, [6]byte, error) {
	nfd, sa, err := unix.Accept(l.fd)
	if err != nil {
		return nil, [6]byte{}, fmt.Errorf("btsocket: accept: %w", err)
	}
	l2sa, ok := sa.(*unix.SockaddrL2)
	if !ok {
		unix.Close(nfd)
		return nil, [6]byte{}, fmt.Errorf("btsocket: accept: unexpected sockaddr type %T", sa)
	}
	return &L2CAPConn{fd: nfd}, l2sa.Addr, nil
}

func (l *L2CAPListener) Close() error { return unix.Close(l.fd) }

// L2CAPConn is one accepted ATT connection; each Read returns exactly
// one ATT PDU (SOCK_SEQPACKET preserves SDU boundaries).
type L2CAPConn struct {
	fd int
}

func (c *L2CAPConn) Read(b []byte) (int, error)  { return unix.Read(c.fd, b) }
func (c *L2CAPConn) Write(b []byte) (int, error) { return unix.Write(c.fd, b) }
func (c *L2CAPConn) Close() error                { return unix.Close(c.fd) }

var _ io.ReadWriteCloser = (*L2CAPConn)(nil)
