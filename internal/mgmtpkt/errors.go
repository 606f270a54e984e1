package mgmtpkt

import "errors"

// Codec errors, per spec.md §7 "Codec" error kind.
var (
	ErrShortPacket        = errors.New("mgmtpkt: packet shorter than header")
	ErrLengthMismatch     = errors.New("mgmtpkt: declared parameter length does not match buffer")
	ErrUnexpectedEOF      = errors.New("mgmtpkt: unexpected end of buffer while decoding parameters")
	ErrInsufficientLength = errors.New("mgmtpkt: buffer too short for this parameter type")
)
