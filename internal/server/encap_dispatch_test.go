package server

import (
	"encoding/binary"
	"testing"

	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/cip/epath"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/cip/message"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/config"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/enip"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/logging"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.CreateDefaultServerConfig()
	cfg.Tags.Count = 4
	logger, err := logging.NewLogger(logging.LevelSilent, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	srv, err := New(cfg, logger, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func registerSessionFrame(order binary.ByteOrder) enip.Packet {
	payload := make([]byte, 4)
	order.PutUint16(payload[0:2], 1) // protocol_version
	order.PutUint16(payload[2:4], 0) // options
	return enip.Packet{
		Header:  enip.Header{Command: enip.CmdRegisterSession},
		Payload: payload,
	}
}

func TestHandleRegisterSessionSuccess(t *testing.T) {
	srv := newTestServer(t)
	order := binary.LittleEndian
	pkt := registerSessionFrame(order)

	resp := srv.encap.handle(pkt, order, "10.0.0.1:1234")
	h := enip.DecodeHeader(order, resp)
	if h.Status != enip.StatusSuccess {
		t.Fatalf("status = 0x%X, want success", h.Status)
	}
	if h.SessionHandle == 0 {
		t.Fatalf("session handle not assigned")
	}
	if srv.sessions.Count() != 1 {
		t.Fatalf("session count = %d, want 1", srv.sessions.Count())
	}
}

func TestHandleRegisterSessionBadProtocolVersion(t *testing.T) {
	srv := newTestServer(t)
	order := binary.LittleEndian
	payload := make([]byte, 4)
	order.PutUint16(payload[0:2], 2) // unsupported protocol_version
	pkt := enip.Packet{Header: enip.Header{Command: enip.CmdRegisterSession}, Payload: payload}

	resp := srv.encap.handle(pkt, order, "10.0.0.1:1234")
	h := enip.DecodeHeader(order, resp)
	if h.Status != enip.StatusUnsupportedProtocol {
		t.Fatalf("status = 0x%X, want UnsupportedProtocol", h.Status)
	}
}

func TestHandleRegisterSessionEnforcesMaxSessionsPerIP(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.Session.MaxSessionsPerIP = 1
	order := binary.LittleEndian

	first := srv.encap.handle(registerSessionFrame(order), order, "10.0.0.5:1")
	if enip.DecodeHeader(order, first).Status != enip.StatusSuccess {
		t.Fatalf("first session should succeed")
	}
	second := srv.encap.handle(registerSessionFrame(order), order, "10.0.0.5:2")
	h := enip.DecodeHeader(order, second)
	if h.Status != enip.StatusInsufficientMemory {
		t.Fatalf("status = 0x%X, want InsufficientMemory for over-limit IP", h.Status)
	}
}

func TestHandleUnregisterSession(t *testing.T) {
	srv := newTestServer(t)
	order := binary.LittleEndian
	resp := srv.encap.handle(registerSessionFrame(order), order, "10.0.0.1:1234")
	handle := enip.DecodeHeader(order, resp).SessionHandle

	unreg := enip.Packet{Header: enip.Header{Command: enip.CmdUnregisterSess, SessionHandle: handle}}
	srv.encap.handle(unreg, order, "10.0.0.1:1234")

	if srv.sessions.Has(handle) {
		t.Fatalf("session %d still present after unregister", handle)
	}
}

func TestHandleListServicesReturnsSingleItem(t *testing.T) {
	srv := newTestServer(t)
	order := binary.LittleEndian
	pkt := enip.Packet{Header: enip.Header{Command: enip.CmdListServices}}
	resp := srv.encap.handle(pkt, order, "10.0.0.1:1234")

	h := enip.DecodeHeader(order, resp)
	if h.Status != enip.StatusSuccess {
		t.Fatalf("status = 0x%X, want success", h.Status)
	}
	payload := resp[enip.HeaderLen:]
	count := order.Uint16(payload[0:2])
	if count != 1 {
		t.Fatalf("item count = %d, want 1", count)
	}
}

func TestHandleListIdentityLegacyLayout(t *testing.T) {
	srv := newTestServer(t)
	order := binary.LittleEndian
	pkt := enip.Packet{Header: enip.Header{Command: enip.CmdListIdentity}}
	resp := srv.encap.handle(pkt, order, "10.0.0.1:1234")

	h := enip.DecodeHeader(order, resp)
	if h.Status != enip.StatusSuccess {
		t.Fatalf("status = 0x%X, want success", h.Status)
	}
	payload := resp[enip.HeaderLen:]
	if len(payload) < 4 {
		t.Fatalf("payload too short: %d", len(payload))
	}
	if order.Uint16(payload[0:2]) != 0 {
		t.Fatalf("leading bytes = %d, want 0 (legacy layout)", order.Uint16(payload[0:2]))
	}
	if int(order.Uint16(payload[2:4])) != srv.cfg.Server.TCPPort {
		t.Fatalf("port = %d, want %d", order.Uint16(payload[2:4]), srv.cfg.Server.TCPPort)
	}
}

func TestHandleSendRRDataRejectsUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	order := binary.LittleEndian
	cpf := enip.UnconnectedResponse(0, 0, nil)
	payload := enip.EncodeCPF(order, cpf)
	pkt := enip.Packet{Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: 999}, Payload: payload}

	resp := srv.encap.handle(pkt, order, "10.0.0.1:1234")
	h := enip.DecodeHeader(order, resp)
	if h.Status != enip.StatusInvalidSessionHandle {
		t.Fatalf("status = 0x%X, want InvalidSessionHandle", h.Status)
	}
}

func TestHandleSendRRDataRoundTripsTagRead(t *testing.T) {
	srv := newTestServer(t)
	order := binary.LittleEndian
	reg := srv.encap.handle(registerSessionFrame(order), order, "10.0.0.1:1234")
	handle := enip.DecodeHeader(order, reg).SessionHandle

	cipReq := message.EncodeRequest(message.Request{
		Service: ServiceReadTag,
		Path:    epath.BuildSymbolic("Sensor1A"),
	})
	reqCPF := enip.CPF{
		Items: []enip.Item{
			{Type: enip.ItemNullAddress, Data: nil},
			{Type: enip.ItemUnconnectedData, Data: cipReq},
		},
	}
	payload := enip.EncodeCPF(order, reqCPF)
	pkt := enip.Packet{Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: handle}, Payload: payload}

	resp := srv.encap.handle(pkt, order, "10.0.0.1:1234")
	h := enip.DecodeHeader(order, resp)
	if h.Status != enip.StatusSuccess {
		t.Fatalf("encap status = 0x%X, want success", h.Status)
	}

	respCPF, err := enip.DecodeCPF(order, resp[enip.HeaderLen:])
	if err != nil {
		t.Fatalf("DecodeCPF: %v", err)
	}
	cipData, ok := respCPF.FindUnconnectedData(true)
	if !ok {
		t.Fatalf("no unconnected data item in response CPF")
	}
	cipResp, err := message.DecodeResponse(cipData)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if cipResp.GeneralStatus != message.StatusSuccess {
		t.Fatalf("CIP status = 0x%02X, want success", cipResp.GeneralStatus)
	}
	if len(cipResp.Data) != 6 {
		t.Fatalf("tag payload len = %d, want 6", len(cipResp.Data))
	}
}

func TestHandleUnsupportedCommand(t *testing.T) {
	srv := newTestServer(t)
	order := binary.LittleEndian
	pkt := enip.Packet{Header: enip.Header{Command: 0x9999}}
	resp := srv.encap.handle(pkt, order, "10.0.0.1:1234")
	h := enip.DecodeHeader(order, resp)
	if h.Status != enip.StatusInvalidCommand {
		t.Fatalf("status = 0x%X, want InvalidCommand", h.Status)
	}
}
