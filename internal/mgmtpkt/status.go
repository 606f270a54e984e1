package mgmtpkt

import "fmt"

// Status is the one-octet result code carried by CommandComplete and
// CommandStatus events. Every value round-trips through Unknown.
type Status struct {
	code byte
}

var (
	StatusSuccess            = Status{0x00}
	StatusUnknownCommand     = Status{0x01}
	StatusNotConnected       = Status{0x02}
	StatusFailed             = Status{0x03}
	StatusConnectFailed      = Status{0x04}
	StatusAuthenticationFailed = Status{0x05}
	StatusNotPaired          = Status{0x06}
	StatusNoResources        = Status{0x07}
	StatusTimeout            = Status{0x08}
	StatusAlreadyConnected   = Status{0x09}
	StatusBusy               = Status{0x0A}
	StatusRejected           = Status{0x0B}
	StatusNotSupported       = Status{0x0C}
	StatusInvalidParameters  = Status{0x0D}
	StatusDisconnected       = Status{0x0E}
	StatusNotPowered         = Status{0x0F}
	StatusCancelled          = Status{0x10}
	StatusInvalidIndex       = Status{0x11}
	StatusRfKilled           = Status{0x12}
	StatusAlreadyPaired      = Status{0x13}
	StatusPermissionDenied   = Status{0x14}
)

// StatusFromByte decodes a wire status octet. Unrecognised values are
// preserved, not rejected; Byte() round-trips them exactly.
func StatusFromByte(b byte) Status { return Status{b} }

// Byte returns the wire encoding of s.
func (s Status) Byte() byte { return s.code }

// OK reports whether s denotes success.
func (s Status) OK() bool { return s.code == StatusSuccess.code }

func (s Status) String() string {
	if name, ok := statusNames[s.code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02x)", s.code)
}

// Error satisfies the error interface so a non-success Status can be
// returned directly as an error value (spec.md §7 "Protocol" errors).
func (s Status) Error() string { return "mgmt status: " + s.String() }

var statusNames = map[byte]string{
	StatusSuccess.code:              "Success",
	StatusUnknownCommand.code:       "UnknownCommand",
	StatusNotConnected.code:         "NotConnected",
	StatusFailed.code:               "Failed",
	StatusConnectFailed.code:        "ConnectFailed",
	StatusAuthenticationFailed.code: "AuthenticationFailed",
	StatusNotPaired.code:            "NotPaired",
	StatusNoResources.code:          "NoResources",
	StatusTimeout.code:              "Timeout",
	StatusAlreadyConnected.code:     "AlreadyConnected",
	StatusBusy.code:                 "Busy",
	StatusRejected.code:             "Rejected",
	StatusNotSupported.code:         "NotSupported",
	StatusInvalidParameters.code:    "InvalidParameters",
	StatusDisconnected.code:         "Disconnected",
	StatusNotPowered.code:           "NotPowered",
	StatusCancelled.code:            "Cancelled",
	StatusInvalidIndex.code:         "InvalidIndex",
	StatusRfKilled.code:             "RfKilled",
	StatusAlreadyPaired.code:        "AlreadyPaired",
	StatusPermissionDenied.code:     "PermissionDenied",
}
