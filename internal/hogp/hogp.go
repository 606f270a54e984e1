// Package hogp assembles the HID-over-GATT service into a gattdb
// database: one combined report map covering a boot keyboard (Report
// ID 1) and a 3-button wheel mouse (Report ID 2), the two Report
// characteristics that carry their live values, and the fixed
// peripheral metadata (HID Information, Protocol Mode, Control Point)
// every HoGP central expects to find.
package hogp

import (
	"github.com/btknmle/btknmle/internal/bleuuid"
	"github.com/btknmle/btknmle/internal/gattdb"
)

// Service is the Human Interface Device primary service UUID.
var Service = bleuuid.UUID16(0x1812)

const (
	charHIDInformation = 0x2A4A
	charReportMap       = 0x2A4B
	charHIDControlPoint = 0x2A4C
	charReport           = 0x2A4D
	charProtocolMode     = 0x2A4E
)

// Report IDs shared with the reporting pipeline; the same numbers are
// baked into the report map below and into the Report Reference
// descriptors, so they must never drift apart.
const (
	ReportIDKeyboard uint8 = 1
	ReportIDMouse    uint8 = 2
)

// reportTypeInput is the only Report Reference type this peripheral
// uses; it never exposes output or feature reports.
const reportTypeInput uint8 = 1

// reportMap is the combined HID report descriptor: a boot-compatible
// keyboard (8-byte report, modifier + reserved + 6 key codes) and a
// 3-button wheel mouse (4-byte report: buttons, dx, dy, wheel), tagged
// by report ID so one GATT characteristic pair can carry both.
var reportMap = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)
	0xA1, 0x01, // Collection (Application)
	0x85, ReportIDKeyboard, //   Report ID (1)
	0x05, 0x07, //   Usage Page (Key Codes)
	0x19, 0xE0, //   Usage Minimum (224)
	0x29, 0xE7, //   Usage Maximum (231)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, 0x08, //   Report Count (8)
	0x81, 0x02, //   Input (Data, Variable, Absolute) -- modifier byte
	0x95, 0x01, //   Report Count (1)
	0x75, 0x08, //   Report Size (8)
	0x81, 0x01, //   Input (Constant) -- reserved byte
	0x95, 0x06, //   Report Count (6)
	0x75, 0x08, //   Report Size (8)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x65, //   Logical Maximum (101)
	0x05, 0x07, //   Usage Page (Key Codes)
	0x19, 0x00, //   Usage Minimum (0)
	0x29, 0x65, //   Usage Maximum (101)
	0x81, 0x00, //   Input (Data, Array) -- 6 key codes
	0xC0, // End Collection

	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x02, // Usage (Mouse)
	0xA1, 0x01, // Collection (Application)
	0x09, 0x01, //   Usage (Pointer)
	0xA1, 0x00, //   Collection (Physical)
	0x85, ReportIDMouse, //     Report ID (2)
	0x05, 0x09, //     Usage Page (Buttons)
	0x19, 0x01, //     Usage Minimum (Button 1)
	0x29, 0x03, //     Usage Maximum (Button 3)
	0x15, 0x00, //     Logical Minimum (0)
	0x25, 0x01, //     Logical Maximum (1)
	0x95, 0x03, //     Report Count (3)
	0x75, 0x01, //     Report Size (1)
	0x81, 0x02, //     Input (Data, Variable, Absolute) -- 3 button bits
	0x95, 0x01, //     Report Count (1)
	0x75, 0x05, //     Report Size (5)
	0x81, 0x01, //     Input (Constant) -- button padding
	0x05, 0x01, //     Usage Page (Generic Desktop)
	0x09, 0x30, //     Usage (X)
	0x09, 0x31, //     Usage (Y)
	0x09, 0x38, //     Usage (Wheel)
	0x15, 0x81, //     Logical Minimum (-127)
	0x25, 0x7F, //     Logical Maximum (127)
	0x75, 0x08, //     Report Size (8)
	0x95, 0x03, //     Report Count (3)
	0x81, 0x06, //     Input (Data, Variable, Relative) -- dx, dy, wheel
	0xC0, //   End Collection
	0xC0, // End Collection
}

// KeyboardReportLen and MouseReportLen are the notification payload
// widths the supervisor's report loop must produce.
const (
	KeyboardReportLen = 8
	MouseReportLen    = 4
)

// Handles names the value and CCCD handles the supervisor needs to
// push reports and check the notification gate.
type Handles struct {
	ProtocolMode  uint16
	KeyboardValue uint16
	KeyboardCCCD  uint16
	MouseValue    uint16
	MouseCCCD     uint16
}

// Build appends the HID service, exactly once, to b and returns the
// handles the report-streaming loop drives.
func Build(b *gattdb.Builder) Handles {
	b.AddPrimaryService(Service)

	b.AddCharacteristic(bleuuid.UUID16(charHIDInformation), []byte{0x11, 0x01, 0x00, 0x02}, gattdb.PropRead)

	b.AddCharacteristic(bleuuid.UUID16(charReportMap), reportMap, gattdb.PropRead)

	b.AddCharacteristic(bleuuid.UUID16(charHIDControlPoint), []byte{0x00}, gattdb.PropWriteNoResponse)

	var h Handles
	h.ProtocolMode = b.AddCharacteristic(bleuuid.UUID16(charProtocolMode), []byte{reportProtocolMode}, gattdb.PropRead|gattdb.PropWriteNoResponse)

	h.KeyboardValue = b.AddCharacteristic(bleuuid.UUID16(charReport), make([]byte, KeyboardReportLen), gattdb.PropRead|gattdb.PropNotify)
	h.KeyboardCCCD = b.AddCCCD(0)
	b.AddReportReference(ReportIDKeyboard, reportTypeInput)

	h.MouseValue = b.AddCharacteristic(bleuuid.UUID16(charReport), make([]byte, MouseReportLen), gattdb.PropRead|gattdb.PropNotify)
	h.MouseCCCD = b.AddCCCD(0)
	b.AddReportReference(ReportIDMouse, reportTypeInput)

	return h
}

// reportProtocolMode is the Protocol Mode characteristic's initial
// value: this peripheral never negotiates down to boot protocol over
// GATT, it always reports in report-protocol framing regardless of what
// a central writes. Writes are accepted (so a central's mode-switch
// attempt doesn't error) and kept in the connection's session, so a
// later read returns the written byte, but nothing consults them.
const reportProtocolMode = 0x01
