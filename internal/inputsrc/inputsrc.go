// Package inputsrc is the narrow boundary between this daemon and the
// operating system's input-event subsystem. The real collaborator
// reads the keyboard and pointing device and turns their events into
// already-framed HID boot-protocol report bytes; this package states
// that contract (Source) and provides StreamSource, which reads those
// reports as datagrams from Unix sockets the collaborator writes to,
// and a channel-backed Fake for tests. Building the actual
// keycode-to-HID-usage table and opening
// evdev devices is out of scope here: the daemon only ever sees the
// two report-byte streams.
package inputsrc

import "context"

// KeyboardReport is one 8-byte boot-protocol keyboard report: modifier
// byte, reserved byte, six key codes.
type KeyboardReport [8]byte

// MouseReport is one 4-byte boot-protocol mouse report: buttons byte,
// dx, dy, wheel (each a signed 8-bit delta).
type MouseReport [4]byte

// Source is the external input collaborator's interface: two report
// streams and a way to optionally take or release exclusive access to
// the underlying devices while a central is connected.
type Source interface {
	// KeyboardReports streams boot-protocol keyboard reports until the
	// source is exhausted, at which point it closes. The Fake and
	// StreamSource implementations do not watch ctx: cancelling it does
	// not close the stream.
	KeyboardReports(ctx context.Context) <-chan KeyboardReport
	// MouseReports streams boot-protocol mouse reports, same lifetime
	// rules as KeyboardReports.
	MouseReports(ctx context.Context) <-chan MouseReport
	// Grab requests exclusive access to the underlying devices so
	// input does not also reach the local session; Ungrab releases it.
	// Implementations for which this is meaningless may no-op.
	Grab() error
	Ungrab() error
}

// Digit HID usage codes for the top-row number keys, the only keycodes
// the passkey entry flow (spec.md §4.6) needs to recognise on its own;
// everything else in a keyboard report is forwarded untouched.
const (
	KeycodeDigit1 byte = 0x1E
	KeycodeDigit2 byte = 0x1F
	KeycodeDigit3 byte = 0x20
	KeycodeDigit4 byte = 0x21
	KeycodeDigit5 byte = 0x22
	KeycodeDigit6 byte = 0x23
	KeycodeDigit7 byte = 0x24
	KeycodeDigit8 byte = 0x25
	KeycodeDigit9 byte = 0x26
	KeycodeDigit0 byte = 0x27
	KeycodeEnter  byte = 0x28
)

var digitByKeycode = map[byte]uint8{
	KeycodeDigit1: 1, KeycodeDigit2: 2, KeycodeDigit3: 3, KeycodeDigit4: 4,
	KeycodeDigit5: 5, KeycodeDigit6: 6, KeycodeDigit7: 7, KeycodeDigit8: 8,
	KeycodeDigit9: 9, KeycodeDigit0: 0,
}

// DigitForKeycode reports the decimal digit a HID key code represents,
// if it is one of the ten number-row keys.
func DigitForKeycode(code byte) (uint8, bool) {
	d, ok := digitByKeycode[code]
	return d, ok
}

// PressedKeycodes returns the non-zero key codes (up to six) carried
// by one keyboard report, in slot order.
func (r KeyboardReport) PressedKeycodes() []byte {
	var out []byte
	for _, c := range r[2:] {
		if c != 0 {
			out = append(out, c)
		}
	}
	return out
}
