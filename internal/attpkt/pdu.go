package attpkt

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btknmle/btknmle/internal/bleuuid"
)

// Codec errors (spec.md §7 "Codec" error kind).
var (
	ErrUnexpectedEOF       = errors.New("attpkt: unexpected end of buffer while decoding")
	ErrInsufficientBufLength = errors.New("attpkt: buffer too short for this PDU")
)

// UnexpectedOpcode carries the raw opcode byte of a PDU this module
// does not recognise; per spec.md §4.1 it maps to
// ErrorResponse{request=opcode, handle=0, code=RequestNotSupported}.
type UnexpectedOpcode struct{ Opcode uint8 }

func (e UnexpectedOpcode) Error() string {
	return fmt.Sprintf("attpkt: unknown opcode 0x%02x", e.Opcode)
}

// PDU is implemented by every decoded ATT message.
type PDU interface {
	Opcode() Opcode
	Encode() []byte
}

// ErrorResponse ends a transaction with an ATT error code.
type ErrorResponse struct {
	RequestOpcode Opcode
	Handle        uint16
	Code          ErrorCode
}

func (ErrorResponse) Opcode() Opcode { return OpErrorResponse }
func (e ErrorResponse) Encode() []byte {
	b := make([]byte, 5)
	b[0] = byte(e.RequestOpcode)
	binary.LittleEndian.PutUint16(b[1:3], e.Handle)
	b[3] = e.Code.Byte()
	return append([]byte{byte(OpErrorResponse)}, b[:4]...)
}

func decodeErrorResponse(b []byte) (ErrorResponse, error) {
	if len(b) < 4 {
		return ErrorResponse{}, ErrUnexpectedEOF
	}
	return ErrorResponse{
		RequestOpcode: Opcode(b[0]),
		Handle:        binary.LittleEndian.Uint16(b[1:3]),
		Code:          ErrorCodeFromByte(b[3]),
	}, nil
}

type ExchangeMTURequest struct{ ClientMTU uint16 }

func (ExchangeMTURequest) Opcode() Opcode { return OpExchangeMTURequest }
func (p ExchangeMTURequest) Encode() []byte {
	return encode1(OpExchangeMTURequest, u16(p.ClientMTU))
}
func decodeExchangeMTURequest(b []byte) (ExchangeMTURequest, error) {
	if len(b) < 2 {
		return ExchangeMTURequest{}, ErrUnexpectedEOF
	}
	return ExchangeMTURequest{ClientMTU: binary.LittleEndian.Uint16(b)}, nil
}

type ExchangeMTUResponse struct{ ServerMTU uint16 }

func (ExchangeMTUResponse) Opcode() Opcode { return OpExchangeMTUResponse }
func (p ExchangeMTUResponse) Encode() []byte {
	return encode1(OpExchangeMTUResponse, u16(p.ServerMTU))
}
func decodeExchangeMTUResponse(b []byte) (ExchangeMTUResponse, error) {
	if len(b) < 2 {
		return ExchangeMTUResponse{}, ErrUnexpectedEOF
	}
	return ExchangeMTUResponse{ServerMTU: binary.LittleEndian.Uint16(b)}, nil
}

type FindInformationRequest struct{ StartHandle, EndHandle uint16 }

func (FindInformationRequest) Opcode() Opcode { return OpFindInformationRequest }
func (p FindInformationRequest) Encode() []byte {
	return encode1(OpFindInformationRequest, append(u16(p.StartHandle), u16(p.EndHandle)...))
}
func decodeFindInformationRequest(b []byte) (FindInformationRequest, error) {
	if len(b) < 4 {
		return FindInformationRequest{}, ErrUnexpectedEOF
	}
	return FindInformationRequest{
		StartHandle: binary.LittleEndian.Uint16(b[0:2]),
		EndHandle:   binary.LittleEndian.Uint16(b[2:4]),
	}, nil
}

// InfoPair is one (handle, UUID) result of Find Information.
type InfoPair struct {
	Handle uint16
	UUID   bleuuid.UUID
}

// FindInformationResponse carries a list of pairs whose UUIDs all
// share the same width (format 1 = 16-bit, format 2 = 128-bit).
type FindInformationResponse struct{ Pairs []InfoPair }

func (FindInformationResponse) Opcode() Opcode { return OpFindInformationResponse }
func (p FindInformationResponse) Encode() []byte {
	format := byte(1)
	if len(p.Pairs) > 0 && !p.Pairs[0].UUID.Is16() {
		format = 2
	}
	body := []byte{format}
	for _, pr := range p.Pairs {
		body = append(body, u16(pr.Handle)...)
		body = append(body, pr.UUID.Bytes()...)
	}
	return encode1(OpFindInformationResponse, body)
}
func decodeFindInformationResponse(b []byte) (FindInformationResponse, error) {
	if len(b) < 1 {
		return FindInformationResponse{}, ErrUnexpectedEOF
	}
	width := 2
	if b[0] == 2 {
		width = 16
	}
	b = b[1:]
	var pairs []InfoPair
	for len(b) > 0 {
		if len(b) < 2+width {
			return FindInformationResponse{}, ErrUnexpectedEOF
		}
		h := binary.LittleEndian.Uint16(b[0:2])
		u, err := bleuuid.Parse(b[2 : 2+width])
		if err != nil {
			return FindInformationResponse{}, err
		}
		pairs = append(pairs, InfoPair{Handle: h, UUID: u})
		b = b[2+width:]
	}
	return FindInformationResponse{Pairs: pairs}, nil
}

type FindByTypeValueRequest struct {
	StartHandle, EndHandle uint16
	Type                   uint16
	Value                  []byte
}

func (FindByTypeValueRequest) Opcode() Opcode { return OpFindByTypeValueRequest }
func (p FindByTypeValueRequest) Encode() []byte {
	body := append(u16(p.StartHandle), u16(p.EndHandle)...)
	body = append(body, u16(p.Type)...)
	body = append(body, p.Value...)
	return encode1(OpFindByTypeValueRequest, body)
}
func decodeFindByTypeValueRequest(b []byte) (FindByTypeValueRequest, error) {
	if len(b) < 6 {
		return FindByTypeValueRequest{}, ErrUnexpectedEOF
	}
	return FindByTypeValueRequest{
		StartHandle: binary.LittleEndian.Uint16(b[0:2]),
		EndHandle:   binary.LittleEndian.Uint16(b[2:4]),
		Type:        binary.LittleEndian.Uint16(b[4:6]),
		Value:       append([]byte(nil), b[6:]...),
	}, nil
}

// HandleRange is an inclusive (start, end) attribute group.
type HandleRange struct{ StartHandle, EndHandle uint16 }

type FindByTypeValueResponse struct{ Ranges []HandleRange }

func (FindByTypeValueResponse) Opcode() Opcode { return OpFindByTypeValueResponse }
func (p FindByTypeValueResponse) Encode() []byte {
	var body []byte
	for _, r := range p.Ranges {
		body = append(body, u16(r.StartHandle)...)
		body = append(body, u16(r.EndHandle)...)
	}
	return encode1(OpFindByTypeValueResponse, body)
}
func decodeFindByTypeValueResponse(b []byte) (FindByTypeValueResponse, error) {
	var ranges []HandleRange
	for len(b) > 0 {
		if len(b) < 4 {
			return FindByTypeValueResponse{}, ErrUnexpectedEOF
		}
		ranges = append(ranges, HandleRange{
			StartHandle: binary.LittleEndian.Uint16(b[0:2]),
			EndHandle:   binary.LittleEndian.Uint16(b[2:4]),
		})
		b = b[4:]
	}
	return FindByTypeValueResponse{Ranges: ranges}, nil
}

type ReadByTypeRequest struct {
	StartHandle, EndHandle uint16
	Type                   bleuuid.UUID
}

func (ReadByTypeRequest) Opcode() Opcode { return OpReadByTypeRequest }
func (p ReadByTypeRequest) Encode() []byte {
	body := append(u16(p.StartHandle), u16(p.EndHandle)...)
	body = append(body, p.Type.Bytes()...)
	return encode1(OpReadByTypeRequest, body)
}
func decodeReadByTypeRequest(b []byte) (ReadByTypeRequest, error) {
	if len(b) < 4 {
		return ReadByTypeRequest{}, ErrUnexpectedEOF
	}
	u, err := bleuuid.Parse(b[4:])
	if err != nil {
		return ReadByTypeRequest{}, err
	}
	return ReadByTypeRequest{
		StartHandle: binary.LittleEndian.Uint16(b[0:2]),
		EndHandle:   binary.LittleEndian.Uint16(b[2:4]),
		Type:        u,
	}, nil
}

// AttributeData is one (handle, value) result of Read By Type.
type AttributeData struct {
	Handle uint16
	Value  []byte
}

// ReadByTypeResponse carries attribute data entries that must all have
// the same encoded value length.
type ReadByTypeResponse struct{ Data []AttributeData }

func (ReadByTypeResponse) Opcode() Opcode { return OpReadByTypeResponse }
func (p ReadByTypeResponse) Encode() []byte {
	elemLen := byte(0)
	if len(p.Data) > 0 {
		elemLen = byte(2 + len(p.Data[0].Value))
	}
	body := []byte{elemLen}
	for _, d := range p.Data {
		body = append(body, u16(d.Handle)...)
		body = append(body, d.Value...)
	}
	return encode1(OpReadByTypeResponse, body)
}
func decodeReadByTypeResponse(b []byte) (ReadByTypeResponse, error) {
	if len(b) < 1 {
		return ReadByTypeResponse{}, ErrUnexpectedEOF
	}
	elemLen := int(b[0])
	b = b[1:]
	var data []AttributeData
	for len(b) > 0 {
		if len(b) < elemLen || elemLen < 2 {
			return ReadByTypeResponse{}, ErrUnexpectedEOF
		}
		data = append(data, AttributeData{
			Handle: binary.LittleEndian.Uint16(b[0:2]),
			Value:  append([]byte(nil), b[2:elemLen]...),
		})
		b = b[elemLen:]
	}
	return ReadByTypeResponse{Data: data}, nil
}

type ReadRequest struct{ Handle uint16 }

func (ReadRequest) Opcode() Opcode        { return OpReadRequest }
func (p ReadRequest) Encode() []byte      { return encode1(OpReadRequest, u16(p.Handle)) }
func decodeReadRequest(b []byte) (ReadRequest, error) {
	if len(b) < 2 {
		return ReadRequest{}, ErrUnexpectedEOF
	}
	return ReadRequest{Handle: binary.LittleEndian.Uint16(b)}, nil
}

type ReadResponse struct{ Value []byte }

func (ReadResponse) Opcode() Opcode   { return OpReadResponse }
func (p ReadResponse) Encode() []byte { return encode1(OpReadResponse, p.Value) }
func decodeReadResponse(b []byte) (ReadResponse, error) {
	return ReadResponse{Value: append([]byte(nil), b...)}, nil
}

type ReadBlobRequest struct {
	Handle uint16
	Offset uint16
}

func (ReadBlobRequest) Opcode() Opcode { return OpReadBlobRequest }
func (p ReadBlobRequest) Encode() []byte {
	return encode1(OpReadBlobRequest, append(u16(p.Handle), u16(p.Offset)...))
}
func decodeReadBlobRequest(b []byte) (ReadBlobRequest, error) {
	if len(b) < 4 {
		return ReadBlobRequest{}, ErrUnexpectedEOF
	}
	return ReadBlobRequest{
		Handle: binary.LittleEndian.Uint16(b[0:2]),
		Offset: binary.LittleEndian.Uint16(b[2:4]),
	}, nil
}

type ReadBlobResponse struct{ Value []byte }

func (ReadBlobResponse) Opcode() Opcode   { return OpReadBlobResponse }
func (p ReadBlobResponse) Encode() []byte { return encode1(OpReadBlobResponse, p.Value) }
func decodeReadBlobResponse(b []byte) (ReadBlobResponse, error) {
	return ReadBlobResponse{Value: append([]byte(nil), b...)}, nil
}

type ReadByGroupTypeRequest struct {
	StartHandle, EndHandle uint16
	Type                   bleuuid.UUID
}

func (ReadByGroupTypeRequest) Opcode() Opcode { return OpReadByGroupTypeRequest }
func (p ReadByGroupTypeRequest) Encode() []byte {
	body := append(u16(p.StartHandle), u16(p.EndHandle)...)
	body = append(body, p.Type.Bytes()...)
	return encode1(OpReadByGroupTypeRequest, body)
}
func decodeReadByGroupTypeRequest(b []byte) (ReadByGroupTypeRequest, error) {
	if len(b) < 4 {
		return ReadByGroupTypeRequest{}, ErrUnexpectedEOF
	}
	u, err := bleuuid.Parse(b[4:])
	if err != nil {
		return ReadByGroupTypeRequest{}, err
	}
	return ReadByGroupTypeRequest{
		StartHandle: binary.LittleEndian.Uint16(b[0:2]),
		EndHandle:   binary.LittleEndian.Uint16(b[2:4]),
		Type:        u,
	}, nil
}

// GroupData is one (handle range, value) result of Read By Group Type.
type GroupData struct {
	StartHandle, EndHandle uint16
	Value                  []byte
}

type ReadByGroupTypeResponse struct{ Data []GroupData }

func (ReadByGroupTypeResponse) Opcode() Opcode { return OpReadByGroupTypeResponse }
func (p ReadByGroupTypeResponse) Encode() []byte {
	elemLen := byte(0)
	if len(p.Data) > 0 {
		elemLen = byte(4 + len(p.Data[0].Value))
	}
	body := []byte{elemLen}
	for _, d := range p.Data {
		body = append(body, u16(d.StartHandle)...)
		body = append(body, u16(d.EndHandle)...)
		body = append(body, d.Value...)
	}
	return encode1(OpReadByGroupTypeResponse, body)
}
func decodeReadByGroupTypeResponse(b []byte) (ReadByGroupTypeResponse, error) {
	if len(b) < 1 {
		return ReadByGroupTypeResponse{}, ErrUnexpectedEOF
	}
	elemLen := int(b[0])
	b = b[1:]
	var data []GroupData
	for len(b) > 0 {
		if len(b) < elemLen || elemLen < 4 {
			return ReadByGroupTypeResponse{}, ErrUnexpectedEOF
		}
		data = append(data, GroupData{
			StartHandle: binary.LittleEndian.Uint16(b[0:2]),
			EndHandle:   binary.LittleEndian.Uint16(b[2:4]),
			Value:       append([]byte(nil), b[4:elemLen]...),
		})
		b = b[elemLen:]
	}
	return ReadByGroupTypeResponse{Data: data}, nil
}

type WriteRequest struct {
	Handle uint16
	Value  []byte
}

func (WriteRequest) Opcode() Opcode { return OpWriteRequest }
func (p WriteRequest) Encode() []byte {
	return encode1(OpWriteRequest, append(u16(p.Handle), p.Value...))
}
func decodeWriteRequest(b []byte) (WriteRequest, error) {
	if len(b) < 2 {
		return WriteRequest{}, ErrUnexpectedEOF
	}
	return WriteRequest{Handle: binary.LittleEndian.Uint16(b[0:2]), Value: append([]byte(nil), b[2:]...)}, nil
}

type WriteResponse struct{}

func (WriteResponse) Opcode() Opcode        { return OpWriteResponse }
func (WriteResponse) Encode() []byte        { return []byte{byte(OpWriteResponse)} }
func decodeWriteResponse([]byte) (WriteResponse, error) { return WriteResponse{}, nil }

type HandleValueNotification struct {
	Handle uint16
	Value  []byte
}

func (HandleValueNotification) Opcode() Opcode { return OpHandleValueNotification }
func (p HandleValueNotification) Encode() []byte {
	return encode1(OpHandleValueNotification, append(u16(p.Handle), p.Value...))
}
func decodeHandleValueNotification(b []byte) (HandleValueNotification, error) {
	if len(b) < 2 {
		return HandleValueNotification{}, ErrUnexpectedEOF
	}
	return HandleValueNotification{Handle: binary.LittleEndian.Uint16(b[0:2]), Value: append([]byte(nil), b[2:]...)}, nil
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func encode1(op Opcode, body []byte) []byte {
	return append([]byte{byte(op)}, body...)
}

// Decode parses one complete ATT PDU (opcode + body) into its typed
// form. An opcode this module does not recognise is reported as
// UnexpectedOpcode; the caller (the GATT server) is responsible for
// turning that into an ErrorResponse per spec.md §4.1.
func Decode(b []byte) (PDU, error) {
	if len(b) < 1 {
		return nil, ErrUnexpectedEOF
	}
	op, body := Opcode(b[0]), b[1:]
	switch op {
	case OpErrorResponse:
		return decodeWrap(decodeErrorResponse(body))
	case OpExchangeMTURequest:
		return decodeWrap(decodeExchangeMTURequest(body))
	case OpExchangeMTUResponse:
		return decodeWrap(decodeExchangeMTUResponse(body))
	case OpFindInformationRequest:
		return decodeWrap(decodeFindInformationRequest(body))
	case OpFindInformationResponse:
		return decodeWrap(decodeFindInformationResponse(body))
	case OpFindByTypeValueRequest:
		return decodeWrap(decodeFindByTypeValueRequest(body))
	case OpFindByTypeValueResponse:
		return decodeWrap(decodeFindByTypeValueResponse(body))
	case OpReadByTypeRequest:
		return decodeWrap(decodeReadByTypeRequest(body))
	case OpReadByTypeResponse:
		return decodeWrap(decodeReadByTypeResponse(body))
	case OpReadRequest:
		return decodeWrap(decodeReadRequest(body))
	case OpReadResponse:
		return decodeWrap(decodeReadResponse(body))
	case OpReadBlobRequest:
		return decodeWrap(decodeReadBlobRequest(body))
	case OpReadBlobResponse:
		return decodeWrap(decodeReadBlobResponse(body))
	case OpReadByGroupTypeRequest:
		return decodeWrap(decodeReadByGroupTypeRequest(body))
	case OpReadByGroupTypeResponse:
		return decodeWrap(decodeReadByGroupTypeResponse(body))
	case OpWriteRequest:
		return decodeWrap(decodeWriteRequest(body))
	case OpWriteResponse:
		return decodeWrap(decodeWriteResponse(body))
	case OpHandleValueNotification:
		return decodeWrap(decodeHandleValueNotification(body))
	default:
		return nil, UnexpectedOpcode{Opcode: b[0]}
	}
}

// decodeWrap adapts a (ConcreteType, error) decoder result to (PDU, error).
func decodeWrap[T PDU](v T, err error) (PDU, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
