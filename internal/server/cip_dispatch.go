package server

import (
	"encoding/binary"
	"time"

	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/cip/epath"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/cip/message"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/config"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/logging"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/objects"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/tagstore"
)

// CIP service codes dispatched by this core (spec §4.6).
const (
	ServiceGetAttributeAll    byte = 0x01
	ServiceGetAttributeSingle byte = 0x0E
	ServiceMultipleService    byte = 0x0A
	ServiceUnconnectedSend    byte = 0x52
	ServiceReadTag            byte = 0x4C
)

// defaultUnconnectedSendMaxDepth bounds Unconnected Send recursion when the
// config doesn't override it (spec §4.6 "suggested limit 4").
const defaultUnconnectedSendMaxDepth = 4

// CIPDispatcher routes CIP messages by service code, recursing for
// Unconnected Send and Multiple Service Packet (spec §4.6, §9 "Recursive
// dispatch"). It is a pure function of (message, shared state): the only
// shared state it touches is the tag store and the session registry's
// live count, both safe for concurrent use.
type CIPDispatcher struct {
	Identity            objects.Identity
	MessageRouter       objects.MessageRouter
	ConnectionManager   objects.ConnectionManager
	Tags                *tagstore.Store
	MaxUnconnectedDepth int
	Logger              *logging.Logger
	// OnTagRead is invoked once per successful tag read, used to drive
	// the tag_reads_total counter (SPEC_FULL §10.6). Nil is a valid,
	// no-op default.
	OnTagRead func()
	// AllowRules and DenyRules implement the optional CIP allow/deny
	// policy layer carried from the teacher (SPEC_FULL §12). Deny is
	// checked first; when Allow is non-empty, anything not matching it
	// is rejected too (default-deny once an allow list exists).
	AllowRules []config.CIPRule
	DenyRules  []config.CIPRule
	// WrapUnconnectedSendResponse re-wraps the inner response of an
	// Unconnected Send in its own success envelope instead of returning
	// it verbatim (SPEC_FULL §13 decision 3, cip.wrap_unconnected_send_response).
	WrapUnconnectedSendResponse bool
}

// NewCIPDispatcher wires the object model and tag store per the Identity
// config and a session-count callback (spec §4.7 "current_session_count").
func NewCIPDispatcher(cfg *config.ServerConfig, tags *tagstore.Store, sessionCount func() int, logger *logging.Logger) *CIPDispatcher {
	maxDepth := cfg.CIP.UnconnectedSendMaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultUnconnectedSendMaxDepth
	}
	return &CIPDispatcher{
		Identity: objects.Identity{
			VendorID:    cfg.Identity.VendorID,
			DeviceType:  cfg.Identity.DeviceType,
			ProductCode: cfg.Identity.ProductCode,
			RevMajor:    cfg.Identity.RevMajor,
			RevMinor:    cfg.Identity.RevMinor,
			Status:      cfg.Identity.Status,
			Serial:      cfg.Identity.Serial,
			ProductName: cfg.Identity.ProductName,
		},
		ConnectionManager:           objects.ConnectionManager{SessionCount: sessionCount},
		Tags:                        tags,
		MaxUnconnectedDepth:         maxDepth,
		Logger:                      logger,
		AllowRules:                  cfg.CIP.Allow,
		DenyRules:                   cfg.CIP.Deny,
		WrapUnconnectedSendResponse: cfg.CIP.WrapUnconnectedSendResponse,
	}
}

// Dispatch decodes raw and returns the encoded CIP response, recursing as
// needed. depth starts at 0 for a request arriving directly over SendRRData.
func (d *CIPDispatcher) Dispatch(raw []byte, depth int) []byte {
	req, err := message.DecodeRequest(raw)
	if err != nil {
		return message.EncodeResponse(message.Error(0, message.StatusNotEnoughData))
	}

	path := epath.Parse(req.Path)

	if resp, denied := d.checkCIPPolicy(req, path); denied {
		return message.EncodeResponse(resp)
	}

	switch req.Service {
	case ServiceGetAttributeAll:
		return message.EncodeResponse(d.getAttributeAll(req, path))
	case ServiceGetAttributeSingle:
		return message.EncodeResponse(d.getAttributeSingle(req, path))
	case ServiceReadTag:
		return message.EncodeResponse(d.readTag(req, path))
	case ServiceMultipleService:
		return message.EncodeResponse(d.multipleServicePacket(req, depth))
	case ServiceUnconnectedSend:
		return d.unconnectedSend(req, depth)
	default:
		return message.EncodeResponse(message.Error(req.Service, message.StatusServiceNotSupported))
	}
}

// checkCIPPolicy applies the optional allow/deny rule lists (SPEC_FULL §12)
// before a request reaches the object model or tag store. Deny rules are
// checked first; if an allow list is configured, anything that fails to
// match it is rejected too. With both lists empty (the default), every
// request passes through unchanged.
func (d *CIPDispatcher) checkCIPPolicy(req message.Request, path epath.Path) (message.Response, bool) {
	if len(d.DenyRules) == 0 && len(d.AllowRules) == 0 {
		return message.Response{}, false
	}
	classID, _ := path.ClassID()
	instance, _ := path.InstanceID()
	attribute, _ := path.AttributeID()

	for _, rule := range d.DenyRules {
		if cipRuleMatches(rule, req.Service, classID, instance, attribute) {
			return message.Error(req.Service, message.StatusServiceNotSupported), true
		}
	}
	if len(d.AllowRules) > 0 {
		for _, rule := range d.AllowRules {
			if cipRuleMatches(rule, req.Service, classID, instance, attribute) {
				return message.Response{}, false
			}
		}
		return message.Error(req.Service, message.StatusServiceNotSupported), true
	}
	return message.Response{}, false
}

// cipRuleMatches reports whether rule matches the given request fields. A
// zero value in any rule field means "don't care" for that field.
func cipRuleMatches(rule config.CIPRule, service byte, class, instance, attribute uint16) bool {
	if rule.Service != 0 && rule.Service != service {
		return false
	}
	if rule.Class != 0 && rule.Class != class {
		return false
	}
	if rule.Instance != 0 && rule.Instance != instance {
		return false
	}
	if rule.Attribute != 0 && rule.Attribute != attribute {
		return false
	}
	return true
}

func (d *CIPDispatcher) getAttributeAll(req message.Request, path epath.Path) message.Response {
	classID, hasClass := path.ClassID()
	if !hasClass {
		return message.Error(req.Service, message.StatusPathSegmentError)
	}
	if classID != objects.ClassIdentity {
		return message.Error(req.Service, message.StatusServiceNotSupported)
	}
	instance, _ := path.InstanceID()
	payload, status := d.Identity.GetAttributeAll(instance)
	if status != message.StatusSuccess {
		return message.Error(req.Service, status)
	}
	return message.Success(req.Service, payload)
}

func (d *CIPDispatcher) getAttributeSingle(req message.Request, path epath.Path) message.Response {
	if len(path.Segments) == 0 {
		return message.Error(req.Service, message.StatusPathSegmentError)
	}
	classID, hasClass := path.ClassID()
	if !hasClass {
		// No logical class segment: some clients phrase tag reads as
		// Get_Attribute_Single with a symbolic path (spec §4.7).
		if name, ok := path.TagName(); ok {
			return d.readTagByName(req, name)
		}
		return message.Error(req.Service, message.StatusPathSegmentError)
	}

	instance, _ := path.InstanceID()
	attribute, hasAttr := path.AttributeID()
	if !hasAttr {
		return message.Error(req.Service, message.StatusPathSegmentError)
	}

	var payload []byte
	var status uint8
	switch classID {
	case objects.ClassIdentity:
		payload, status = d.Identity.GetAttributeSingle(instance, attribute)
	case objects.ClassMessageRouter:
		payload, status = d.MessageRouter.GetAttributeSingle(instance, attribute)
	case objects.ClassConnectionManager:
		payload, status = d.ConnectionManager.GetAttributeSingle(instance, attribute)
	default:
		if name, ok := path.TagName(); ok {
			return d.readTagByName(req, name)
		}
		return message.Error(req.Service, message.StatusObjectDoesNotExist)
	}
	if status != message.StatusSuccess {
		return message.Error(req.Service, status)
	}
	return message.Success(req.Service, payload)
}

func (d *CIPDispatcher) readTag(req message.Request, path epath.Path) message.Response {
	name, ok := path.TagName()
	if !ok {
		return message.Error(req.Service, message.StatusPathDestinationUnknown)
	}
	return d.readTagByName(req, name)
}

func (d *CIPDispatcher) readTagByName(req message.Request, name string) message.Response {
	tag, ok := d.Tags.Resolve(name)
	if !ok {
		return message.Error(req.Service, message.StatusPathDestinationUnknown)
	}
	value := d.Tags.Read(tag, time.Now())
	if d.OnTagRead != nil {
		d.OnTagRead()
	}
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:2], tagstore.DINTTypeCode)
	binary.LittleEndian.PutUint32(payload[2:6], uint32(value))
	return message.Success(req.Service, payload)
}

// multipleServicePacket implements spec §4.6 "Multiple Service Packet":
// count, an offset table, then count embedded requests; each is
// dispatched independently and a malformed member still produces a
// response body so the offset table stays consistent.
func (d *CIPDispatcher) multipleServicePacket(req message.Request, depth int) message.Response {
	data := req.Data
	if len(data) < 2 {
		return message.Error(req.Service, message.StatusNotEnoughData)
	}
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	offsetsEnd := 2 + count*2
	if len(data) < offsetsEnd {
		return message.Error(req.Service, message.StatusNotEnoughData)
	}
	offsets := make([]int, count)
	for i := 0; i < count; i++ {
		offsets[i] = int(binary.LittleEndian.Uint16(data[2+i*2 : 4+i*2]))
	}

	responses := make([][]byte, count)
	for i := 0; i < count; i++ {
		start := offsets[i]
		end := len(data)
		if i+1 < count {
			end = offsets[i+1]
		}
		if start < 0 || start > len(data) || end < start || end > len(data) {
			responses[i] = message.EncodeResponse(message.Error(0, message.StatusGeneralError))
			continue
		}
		sub := data[start:end]
		if depth+1 > d.MaxUnconnectedDepth {
			responses[i] = message.EncodeResponse(message.Error(0, message.StatusGeneralError))
			continue
		}
		responses[i] = d.Dispatch(sub, depth+1)
	}

	out := make([]byte, 2+count*2)
	binary.LittleEndian.PutUint16(out[0:2], uint16(count))
	respOffset := 2 + count*2
	for i, r := range responses {
		binary.LittleEndian.PutUint16(out[2+i*2:4+i*2], uint16(respOffset))
		out = append(out, r...)
		respOffset += len(r)
	}
	return message.Success(req.Service, out)
}

// unconnectedSend implements spec §4.6 "Unconnected Send (0x52)": decode
// the embedded request and recurse, bounded by MaxUnconnectedDepth. Per
// spec the inner response is returned verbatim; when
// WrapUnconnectedSendResponse is set (SPEC_FULL §13 decision 3), the inner
// response is instead re-wrapped in its own 0x52 success envelope.
func (d *CIPDispatcher) unconnectedSend(req message.Request, depth int) []byte {
	if depth+1 > d.MaxUnconnectedDepth {
		return message.EncodeResponse(message.Error(req.Service, message.StatusGeneralError))
	}
	data := req.Data
	if len(data) < 4 {
		return message.EncodeResponse(message.Error(req.Service, message.StatusNotEnoughData))
	}
	embeddedSize := int(binary.LittleEndian.Uint16(data[2:4]))
	if len(data) < 4+embeddedSize {
		return message.EncodeResponse(message.Error(req.Service, message.StatusNotEnoughData))
	}
	embedded := data[4 : 4+embeddedSize]
	inner := d.Dispatch(embedded, depth+1)
	if !d.WrapUnconnectedSendResponse {
		return inner
	}
	return message.EncodeResponse(message.Success(req.Service, inner))
}
