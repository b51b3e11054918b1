// Package message implements CIP request/response framing: the
// service|path|data request form and the service|0x80 response form
// (spec §3 "CIP message").
package message

import "errors"

// General status codes used by the CIP Dispatcher and Object Model
// (spec §4.6, §4.7, §7).
const (
	StatusSuccess                 uint8 = 0x00
	StatusConnectionFailure       uint8 = 0x01
	StatusResourceUnavailable     uint8 = 0x02
	StatusPathSegmentError        uint8 = 0x04
	StatusPathDestinationUnknown  uint8 = 0x05
	StatusServiceNotSupported     uint8 = 0x08
	StatusAttributeNotSupported   uint8 = 0x14
	StatusNotEnoughData           uint8 = 0x13
	StatusObjectDoesNotExist      uint8 = 0x16
	StatusGeneralError            uint8 = 0x1E
)

// ErrTooShort indicates a buffer too small to hold a request or response.
var ErrTooShort = errors.New("message: buffer too short")

// Request is a decoded CIP request.
type Request struct {
	Service byte // bit 7 clear
	Path    []byte
	Data    []byte
}

// Response is a decoded/constructed CIP response.
type Response struct {
	Service       byte // service code; EncodeResponse sets bit 7 on the wire
	GeneralStatus uint8
	// ExtendedStatusWords is always 0 in this core (spec §3).
	Data []byte
}

// DecodeRequest parses {service, path_words, path, data} (spec §3).
func DecodeRequest(data []byte) (Request, error) {
	if len(data) < 2 {
		return Request{}, ErrTooShort
	}
	service := data[0] &^ 0x80
	pathWords := int(data[1])
	pathLen := pathWords * 2
	if len(data) < 2+pathLen {
		return Request{}, ErrTooShort
	}
	req := Request{
		Service: service,
		Path:    data[2 : 2+pathLen],
		Data:    data[2+pathLen:],
	}
	return req, nil
}

// EncodeRequest serializes a request with an explicit path-word count
// header, used when building embedded sub-requests (Multiple Service
// Packet, Unconnected Send route paths).
func EncodeRequest(req Request) []byte {
	path := req.Path
	if len(path)%2 != 0 {
		path = append(append([]byte(nil), path...), 0x00)
	}
	out := make([]byte, 0, 2+len(path)+len(req.Data))
	out = append(out, req.Service&^0x80, byte(len(path)/2))
	out = append(out, path...)
	out = append(out, req.Data...)
	return out
}

// DecodeResponse parses {service|0x80, reserved, general_status,
// ext_status_words, data} (spec §3). The response bit is cleared from
// Service, mirroring DecodeRequest.
func DecodeResponse(data []byte) (Response, error) {
	if len(data) < 4 {
		return Response{}, ErrTooShort
	}
	return Response{
		Service:       data[0] &^ 0x80,
		GeneralStatus: data[2],
		Data:          data[4:],
	}, nil
}

// EncodeResponse builds the wire form of a response: service with the
// response bit set, a reserved 0x00, the general status, a zero byte for
// "no extended status words" (always true in this core), then data
// (spec §4.6).
func EncodeResponse(resp Response) []byte {
	out := make([]byte, 4, 4+len(resp.Data))
	out[0] = resp.Service | 0x80
	out[1] = 0x00
	out[2] = resp.GeneralStatus
	out[3] = 0x00
	out = append(out, resp.Data...)
	return out
}

// Success builds a SUCCESS response for the given request service.
func Success(requestService byte, data []byte) Response {
	return Response{Service: requestService &^ 0x80, GeneralStatus: StatusSuccess, Data: data}
}

// Error builds an error response for the given request service, with no data.
func Error(requestService byte, status uint8) Response {
	return Response{Service: requestService &^ 0x80, GeneralStatus: status}
}
