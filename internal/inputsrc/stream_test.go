package inputsrc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"
)

func TestStreamSourceDeliversFramedReports(t *testing.T) {
	dir := t.TempDir()
	kbPath := filepath.Join(dir, "kb.sock")
	msPath := filepath.Join(dir, "ms.sock")
	ctrlPath := filepath.Join(dir, "ctrl.sock")

	ctrlListener, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: ctrlPath, Net: "unixgram"})
	if err != nil {
		t.Fatal(err)
	}
	defer ctrlListener.Close()

	s, err := OpenStream(kbPath, msPath, ctrlPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	kb := s.KeyboardReports(ctx)
	ms := s.MouseReports(ctx)

	kbProducer, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: kbPath, Net: "unixgram"})
	if err != nil {
		t.Fatal(err)
	}
	defer kbProducer.Close()
	want := KeyboardReport{0x02, 0x00, KeycodeDigit5, 0, 0, 0, 0, 0}
	if _, err := kbProducer.Write(want[:]); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-kb:
		if got != want {
			t.Fatalf("got %v want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for keyboard report")
	}

	msProducer, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: msPath, Net: "unixgram"})
	if err != nil {
		t.Fatal(err)
	}
	defer msProducer.Close()
	wantMouse := MouseReport{0x00, 10, 0xF6, 0x00}
	if _, err := msProducer.Write(wantMouse[:]); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ms:
		if got != wantMouse {
			t.Fatalf("got %v want %v", got, wantMouse)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mouse report")
	}

	if err := s.Grab(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	ctrlListener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := ctrlListener.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || buf[0] != 'G' {
		t.Fatalf("got %q, want a grab notification", buf[:n])
	}
}
