// Package attpkt implements bit-exact encode/decode for the subset of
// ATT (Attribute Protocol) PDUs the HoGP peripheral role needs: one
// L2CAP SDU is one PDU, opcode byte first, little-endian thereafter.
package attpkt

// Opcode identifies an ATT PDU.
type Opcode uint8

const (
	OpErrorResponse          Opcode = 0x01
	OpExchangeMTURequest     Opcode = 0x02
	OpExchangeMTUResponse    Opcode = 0x03
	OpFindInformationRequest Opcode = 0x04
	OpFindInformationResponse Opcode = 0x05
	OpFindByTypeValueRequest  Opcode = 0x06
	OpFindByTypeValueResponse Opcode = 0x07
	OpReadByTypeRequest       Opcode = 0x08
	OpReadByTypeResponse      Opcode = 0x09
	OpReadRequest             Opcode = 0x0A
	OpReadResponse            Opcode = 0x0B
	OpReadBlobRequest         Opcode = 0x0C
	OpReadBlobResponse        Opcode = 0x0D
	OpReadByGroupTypeRequest  Opcode = 0x10
	OpReadByGroupTypeResponse Opcode = 0x11
	OpWriteRequest            Opcode = 0x12
	OpWriteResponse           Opcode = 0x13
	OpHandleValueNotification Opcode = 0x1B
)

var opcodeNames = map[Opcode]string{
	OpErrorResponse:           "ErrorResponse",
	OpExchangeMTURequest:      "ExchangeMTURequest",
	OpExchangeMTUResponse:     "ExchangeMTUResponse",
	OpFindInformationRequest:  "FindInformationRequest",
	OpFindInformationResponse: "FindInformationResponse",
	OpFindByTypeValueRequest:  "FindByTypeValueRequest",
	OpFindByTypeValueResponse: "FindByTypeValueResponse",
	OpReadByTypeRequest:       "ReadByTypeRequest",
	OpReadByTypeResponse:      "ReadByTypeResponse",
	OpReadRequest:             "ReadRequest",
	OpReadResponse:            "ReadResponse",
	OpReadBlobRequest:         "ReadBlobRequest",
	OpReadBlobResponse:        "ReadBlobResponse",
	OpReadByGroupTypeRequest:  "ReadByGroupTypeRequest",
	OpReadByGroupTypeResponse: "ReadByGroupTypeResponse",
	OpWriteRequest:            "WriteRequest",
	OpWriteResponse:           "WriteResponse",
	OpHandleValueNotification: "HandleValueNotification",
}

func (op Opcode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return "UnknownOpcode"
}

// RespondingOpcode maps a request opcode to its response opcode.
var respondingOpcode = map[Opcode]Opcode{
	OpExchangeMTURequest:      OpExchangeMTUResponse,
	OpFindInformationRequest:  OpFindInformationResponse,
	OpFindByTypeValueRequest:  OpFindByTypeValueResponse,
	OpReadByTypeRequest:       OpReadByTypeResponse,
	OpReadRequest:             OpReadResponse,
	OpReadBlobRequest:         OpReadBlobResponse,
	OpReadByGroupTypeRequest:  OpReadByGroupTypeResponse,
	OpWriteRequest:            OpWriteResponse,
}

func RespondingOpcode(req Opcode) (Opcode, bool) {
	op, ok := respondingOpcode[req]
	return op, ok
}
