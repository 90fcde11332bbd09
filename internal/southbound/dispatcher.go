// Package southbound implements the DLM-facing MIH protocol across its
// three transports (§4.5, §6): Unix SOCK_STREAM for the bulk of the
// request/confirm and indication traffic, Unix SOCK_DGRAM for lightweight
// one-shot indications, and a headerless UDP frame for legacy DLM
// heartbeats. Dispatcher decodes primitives with internal/wire/mihwire and
// applies them to the Link Registry, mirroring magic_lmi.c's primitive
// switch but replacing its single-threaded poll loop with one dispatcher
// shared by three independently listening transports.
package southbound

import (
	"github.com/arinc839/cmcore/internal/audit"
	"github.com/arinc839/cmcore/internal/dictionary"
	"github.com/arinc839/cmcore/internal/linkregistry"
	"github.com/arinc839/cmcore/internal/logger"
	"github.com/arinc839/cmcore/internal/wire/mihwire"
)

// Dispatcher applies decoded MIH primitives to the Link Registry. It holds
// no transport state; each transport file owns its own listener/framing and
// calls into Dispatcher per decoded primitive.
type Dispatcher struct {
	links *linkregistry.Registry
	audit *audit.Sink // nil when no accounting sink is configured
}

// NewDispatcher builds a dispatcher against the shared Link Registry.
func NewDispatcher(links *linkregistry.Registry) *Dispatcher {
	return &Dispatcher{links: links}
}

// SetAuditSink attaches the accounting sink that bearer grants/releases are
// recorded to. Optional — a nil sink (the default) simply skips recording.
func (d *Dispatcher) SetAuditSink(sink *audit.Sink) {
	d.audit = sink
}

// ConnState tracks the one piece of per-connection context the stream
// transport needs across calls: which link this DLM's connection speaks
// for, established by its Ext_Link_Register.request (§4.5 — one DLM
// process, one link, one long-lived stream connection, same as
// magic_lmi.c's per-client fd table).
type ConnState struct {
	LinkName string
}

// HandleStream applies one stream-transport primitive and returns the
// confirm/ack payload to write back (nil for primitives that get no reply,
// e.g. indications). conn carries the registered link identity for this
// connection and is updated in place by Ext_Link_Register.request.
func (d *Dispatcher) HandleStream(conn *ConnState, primitiveCode uint16, body []byte) []byte {
	if !dictionary.KnownPrimitive(primitiveCode) {
		logger.Warn("south-bound: unknown primitive code", "code", primitiveCode)
		return nil
	}

	switch primitiveCode {
	case dictionary.MIHExtLinkRegisterReq:
		return d.handleExtLinkRegister(conn, body)
	case dictionary.MIHLinkUpInd:
		d.handleLinkUp(body)
	case dictionary.MIHLinkDownInd:
		d.handleLinkDown(body)
	case dictionary.MIHLinkGoingDownInd:
		d.handleLinkGoingDown(body)
	case dictionary.MIHLinkParametersReportInd:
		d.handleParametersReport(body)
	case dictionary.MIHLinkResourceReq:
		return d.handleLinkResource(conn, body)
	case dictionary.MIHExtHeartbeat:
		return d.handleHeartbeat(body)
	default:
		logger.Debug("south-bound: primitive has no stream handler", "primitive", dictionary.PrimitiveName(primitiveCode))
	}
	return nil
}

func (d *Dispatcher) handleExtLinkRegister(conn *ConnState, body []byte) []byte {
	req, err := mihwire.DecodeExtLinkRegisterRequest(body)
	if err != nil {
		logger.Warn("south-bound: Ext_Link_Register.request decode failed", "error", err.Error())
		return mihwire.EncodeExtLinkRegisterConfirm(mihwire.ExtLinkRegisterConfirm{Status: 1})
	}

	linkName := req.LinkIdentifier.LinkAddr
	linkType := dictionary.LinkType(req.LinkIdentifier.LinkType)
	if err := d.links.Register(linkName, linkType, req.Capability.MaxBandwidthKbps, req.Capability.TypicalLatencyMs, req.Capability.SecurityLevel); err != nil {
		logger.Error("south-bound: link register failed", err, "link", linkName)
		return mihwire.EncodeExtLinkRegisterConfirm(mihwire.ExtLinkRegisterConfirm{Status: 1})
	}

	conn.LinkName = linkName
	logger.Info("link registered", "link", linkName, "type", linkType.String())
	return mihwire.EncodeExtLinkRegisterConfirm(mihwire.ExtLinkRegisterConfirm{Status: 0, AssignedID: 1})
}

func (d *Dispatcher) handleLinkUp(body []byte) {
	ind, err := mihwire.DecodeLinkUpIndication(body)
	if err != nil {
		logger.Warn("south-bound: Link_Up.indication decode failed", "error", err.Error())
		return
	}
	params := toRegistryParameters(ind.Parameters)
	if err := d.links.MarkUp(ind.LinkIdentifier.LinkAddr, params); err != nil {
		logger.Warn("south-bound: mark-up on unregistered link", "link", ind.LinkIdentifier.LinkAddr, "error", err.Error())
	}
}

func (d *Dispatcher) handleLinkDown(body []byte) {
	ind, err := mihwire.DecodeLinkDownIndication(body)
	if err != nil {
		logger.Warn("south-bound: Link_Down.indication decode failed", "error", err.Error())
		return
	}
	if err := d.links.MarkDown(ind.LinkIdentifier.LinkAddr); err != nil {
		logger.Warn("south-bound: mark-down on unregistered link", "link", ind.LinkIdentifier.LinkAddr, "error", err.Error())
	}
}

func (d *Dispatcher) handleLinkGoingDown(body []byte) {
	ind, err := mihwire.DecodeLinkGoingDownIndication(body)
	if err != nil {
		logger.Warn("south-bound: Link_Going_Down.indication decode failed", "error", err.Error())
		return
	}
	if err := d.links.MarkGoingDown(ind.LinkIdentifier.LinkAddr); err != nil {
		logger.Warn("south-bound: going-down on unregistered link", "link", ind.LinkIdentifier.LinkAddr, "error", err.Error())
	}
}

func (d *Dispatcher) handleParametersReport(body []byte) {
	ind, err := mihwire.DecodeLinkParametersReportIndication(body)
	if err != nil {
		logger.Warn("south-bound: Link_Parameters_Report.indication decode failed", "error", err.Error())
		return
	}
	params := toRegistryParameters(ind.Parameters)
	if err := d.links.ReportParameters(ind.LinkIdentifier.LinkAddr, params); err != nil {
		logger.Warn("south-bound: parameter report on unregistered link", "link", ind.LinkIdentifier.LinkAddr, "error", err.Error())
	}
}

func (d *Dispatcher) handleLinkResource(conn *ConnState, body []byte) []byte {
	req, err := mihwire.DecodeLinkResourceRequest(body)
	if err != nil {
		logger.Warn("south-bound: Link_Resource.request decode failed", "error", err.Error())
		return mihwire.EncodeLinkResourceConfirm(mihwire.LinkResourceConfirm{Status: 1})
	}
	if conn.LinkName == "" {
		logger.Warn("south-bound: Link_Resource.request before link registration")
		return mihwire.EncodeLinkResourceConfirm(mihwire.LinkResourceConfirm{Status: 1})
	}
	return d.AllocateResource(conn.LinkName, req)
}

// AllocateResource performs the bearer allocation/release a Link_Resource.request
// asks for against a specific, already-identified link, and returns the confirm payload.
func (d *Dispatcher) AllocateResource(linkName string, req mihwire.LinkResourceRequest) []byte {
	if req.HasQoSParams {
		if err := mihwire.ValidateQoS(req.QoS); err != nil {
			logger.Warn("south-bound: QoS validation failed", "link", linkName, "error", err.Error())
			return mihwire.EncodeLinkResourceConfirm(mihwire.LinkResourceConfirm{Status: 1})
		}
	}

	switch req.Action {
	case mihwire.ResourceActionRequest:
		id, err := d.links.AllocateBearer(linkName, req.QoS.CosID, req.QoS.ForwardLinkRate, req.QoS.ReturnLinkRate)
		if err != nil {
			logger.Warn("south-bound: bearer allocation failed", "link", linkName, "error", err.Error())
			return mihwire.EncodeLinkResourceConfirm(mihwire.LinkResourceConfirm{Status: 1})
		}
		if d.audit != nil {
			d.audit.RecordBearerGrant(linkName, id, req.QoS.CosID, req.QoS.ForwardLinkRate, req.QoS.ReturnLinkRate)
		}
		return mihwire.EncodeLinkResourceConfirm(mihwire.LinkResourceConfirm{Status: 0, HasBearerID: true, BearerID: id})
	case mihwire.ResourceActionRelease:
		if err := d.links.ReleaseBearer(linkName, req.BearerID); err != nil {
			logger.Warn("south-bound: bearer release failed", "link", linkName, "error", err.Error())
			return mihwire.EncodeLinkResourceConfirm(mihwire.LinkResourceConfirm{Status: 1})
		}
		if d.audit != nil {
			d.audit.RecordBearerRelease(linkName, req.BearerID)
		}
		return mihwire.EncodeLinkResourceConfirm(mihwire.LinkResourceConfirm{Status: 0})
	default:
		return mihwire.EncodeLinkResourceConfirm(mihwire.LinkResourceConfirm{Status: 1})
	}
}

func (d *Dispatcher) handleHeartbeat(body []byte) []byte {
	hb, err := mihwire.DecodeHeartbeat(body)
	if err != nil {
		logger.Warn("south-bound: Ext_Heartbeat decode failed (stream)", "error", err.Error())
		return nil
	}
	d.links.Touch(hb.DLMName)
	return mihwire.EncodeHeartbeatAck(mihwire.HeartbeatAck{ServerTimestamp: hb.Timestamp})
}

func toRegistryParameters(p mihwire.LinkParameters) linkregistry.Parameters {
	return linkregistry.Parameters{
		CurrentTxRateKbps:      p.CurrentTxRateKbps,
		CurrentRxRateKbps:      p.CurrentRxRateKbps,
		SignalStrengthDbm:      p.SignalStrengthDbm,
		CurrentLatencyMs:       p.CurrentLatencyMs,
		CurrentJitterMs:        p.CurrentJitterMs,
		PacketLossRate:         p.PacketLossRate,
		AvailableBandwidthKbps: p.AvailableBandwidthKbps,
	}
}
