package inputsrc

import (
	"context"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
)

// StreamSource is the real Source: it reads already-framed HID
// boot-protocol reports off two Unix datagram sockets that some
// external process (the thing actually touching /dev/input) writes
// to, one datagram per report. A Unix datagram socket preserves
// message boundaries the same way the ATT L2CAP channel does, so one
// Read is always exactly one report, never a partial or coalesced one.
type StreamSource struct {
	kbConn  *net.UnixConn
	msConn  *net.UnixConn
	ctrl    *net.UnixConn
	kb      chan KeyboardReport
	ms      chan MouseReport
	log     *log.Entry
}

// OpenStream listens on kbSockPath and msSockPath for report datagrams
// and, if ctrlSockPath is non-empty, dials it to deliver grab/ungrab
// requests to the producer process.
func OpenStream(kbSockPath, msSockPath, ctrlSockPath string, logger *log.Entry) (*StreamSource, error) {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	kbConn, err := listenUnixgram(kbSockPath)
	if err != nil {
		return nil, fmt.Errorf("inputsrc: keyboard socket: %w", err)
	}
	msConn, err := listenUnixgram(msSockPath)
	if err != nil {
		kbConn.Close()
		return nil, fmt.Errorf("inputsrc: mouse socket: %w", err)
	}

	var ctrl *net.UnixConn
	if ctrlSockPath != "" {
		ctrl, err = net.DialUnix("unixgram", nil, &net.UnixAddr{Name: ctrlSockPath, Net: "unixgram"})
		if err != nil {
			kbConn.Close()
			msConn.Close()
			return nil, fmt.Errorf("inputsrc: control socket: %w", err)
		}
	}

	s := &StreamSource{
		kbConn: kbConn,
		msConn: msConn,
		ctrl:   ctrl,
		kb:     make(chan KeyboardReport, 16),
		ms:     make(chan MouseReport, 16),
		log:    logger,
	}
	go s.readKeyboard()
	go s.readMouse()
	return s, nil
}

func listenUnixgram(path string) (*net.UnixConn, error) {
	return net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
}

func (s *StreamSource) readKeyboard() {
	buf := make([]byte, len(KeyboardReport{}))
	for {
		n, err := s.kbConn.Read(buf)
		if err != nil {
			close(s.kb)
			return
		}
		if n != len(buf) {
			s.log.WithField("n", n).Warn("inputsrc: dropped a malformed keyboard datagram")
			continue
		}
		var r KeyboardReport
		copy(r[:], buf[:n])
		s.kb <- r
	}
}

func (s *StreamSource) readMouse() {
	buf := make([]byte, len(MouseReport{}))
	for {
		n, err := s.msConn.Read(buf)
		if err != nil {
			close(s.ms)
			return
		}
		if n != len(buf) {
			s.log.WithField("n", n).Warn("inputsrc: dropped a malformed mouse datagram")
			continue
		}
		var r MouseReport
		copy(r[:], buf[:n])
		s.ms <- r
	}
}

func (s *StreamSource) KeyboardReports(ctx context.Context) <-chan KeyboardReport { return s.kb }
func (s *StreamSource) MouseReports(ctx context.Context) <-chan MouseReport      { return s.ms }

func (s *StreamSource) Grab() error   { return s.sendCtrl('G') }
func (s *StreamSource) Ungrab() error { return s.sendCtrl('U') }

func (s *StreamSource) sendCtrl(b byte) error {
	if s.ctrl == nil {
		return nil
	}
	_, err := s.ctrl.Write([]byte{b})
	return err
}

// Close releases the underlying sockets.
func (s *StreamSource) Close() error {
	if s.ctrl != nil {
		s.ctrl.Close()
	}
	kerr := s.kbConn.Close()
	merr := s.msConn.Close()
	if kerr != nil {
		return kerr
	}
	return merr
}

var _ Source = (*StreamSource)(nil)
