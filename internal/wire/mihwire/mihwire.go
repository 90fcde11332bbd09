// Package mihwire implements the byte-level codec for the south-bound MIH
// protocol across its three transports (§6, §4.5): the 12-byte stream
// header, the 2-byte datagram header, and the headerless UDP heartbeat
// frame. Every primitive payload is encoded/decoded field-by-field against
// a byte buffer — there is no packed struct cast onto the wire, per Design
// Note §9 ("define wire formats explicitly, derive encoders/decoders, do
// not rely on native layout"), grounded on the same binary.BigEndian idiom
// as internal/wire/diameterwire and the teacher's decoder package.
package mihwire

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	StreamHeaderLen   = 12
	DatagramHeaderLen = 2
)

// StreamHeader prefixes every message on the Unix SOCK_STREAM transport.
type StreamHeader struct {
	PrimitiveCode uint16
	Length        uint16 // total length including this header
	TransactionID uint32
	Timestamp     uint32
}

// DecodeStreamHeader parses the fixed 12-byte stream header.
func DecodeStreamHeader(data []byte) (StreamHeader, error) {
	if len(data) < StreamHeaderLen {
		return StreamHeader{}, fmt.Errorf("mihwire: short stream header, got %d bytes want %d", len(data), StreamHeaderLen)
	}
	return StreamHeader{
		PrimitiveCode: binary.BigEndian.Uint16(data[0:2]),
		Length:        binary.BigEndian.Uint16(data[2:4]),
		TransactionID: binary.BigEndian.Uint32(data[4:8]),
		Timestamp:     binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// EncodeStreamHeader writes h into a fresh 12-byte buffer.
func EncodeStreamHeader(h StreamHeader) []byte {
	buf := make([]byte, StreamHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], h.PrimitiveCode)
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	binary.BigEndian.PutUint32(buf[4:8], h.TransactionID)
	binary.BigEndian.PutUint32(buf[8:12], h.Timestamp)
	return buf
}

// DecodeDatagramHeader parses the 2-byte primitive code prefix used on the
// Unix SOCK_DGRAM transport (no transaction id, one message per datagram).
func DecodeDatagramHeader(data []byte) (uint16, error) {
	if len(data) < DatagramHeaderLen {
		return 0, fmt.Errorf("mihwire: short datagram header, got %d bytes want %d", len(data), DatagramHeaderLen)
	}
	return binary.BigEndian.Uint16(data[0:2]), nil
}

// EncodeDatagramHeader writes the 2-byte primitive code prefix.
func EncodeDatagramHeader(primitiveCode uint16) []byte {
	buf := make([]byte, DatagramHeaderLen)
	binary.BigEndian.PutUint16(buf, primitiveCode)
	return buf
}

func putFixedString(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

func getFixedString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// LinkTupleID identifies a link by type, link-level address, and point of attachment.
type LinkTupleID struct {
	LinkType uint8
	LinkAddr string // max 32 bytes
	PoAAddr  string // max 32 bytes
}

const linkTupleIDLen = 1 + 32 + 32

func encodeLinkTupleID(t LinkTupleID) []byte {
	buf := make([]byte, linkTupleIDLen)
	buf[0] = t.LinkType
	putFixedString(buf[1:33], t.LinkAddr)
	putFixedString(buf[33:65], t.PoAAddr)
	return buf
}

func decodeLinkTupleID(data []byte) (LinkTupleID, error) {
	if len(data) < linkTupleIDLen {
		return LinkTupleID{}, fmt.Errorf("mihwire: short LINK_TUPLE_ID, got %d want %d", len(data), linkTupleIDLen)
	}
	return LinkTupleID{
		LinkType: data[0],
		LinkAddr: getFixedString(data[1:33]),
		PoAAddr:  getFixedString(data[33:65]),
	}, nil
}

// LinkCapability describes what a link can do (mih_protocol.h LINK_CAPABILITY).
type LinkCapability struct {
	SupportedEvents   uint32
	SupportedCommands uint32
	MaxBandwidthKbps  uint32
	TypicalLatencyMs  uint32
	LinkType          uint8
	SecurityLevel     uint8
	MTU               uint16
	IsAsymmetric      bool
}

const linkCapabilityLen = 4 + 4 + 4 + 4 + 1 + 1 + 2 + 1

func encodeLinkCapability(c LinkCapability) []byte {
	buf := make([]byte, linkCapabilityLen)
	binary.BigEndian.PutUint32(buf[0:4], c.SupportedEvents)
	binary.BigEndian.PutUint32(buf[4:8], c.SupportedCommands)
	binary.BigEndian.PutUint32(buf[8:12], c.MaxBandwidthKbps)
	binary.BigEndian.PutUint32(buf[12:16], c.TypicalLatencyMs)
	buf[16] = c.LinkType
	buf[17] = c.SecurityLevel
	binary.BigEndian.PutUint16(buf[18:20], c.MTU)
	if c.IsAsymmetric {
		buf[20] = 1
	}
	return buf
}

func decodeLinkCapability(data []byte) (LinkCapability, error) {
	if len(data) < linkCapabilityLen {
		return LinkCapability{}, fmt.Errorf("mihwire: short LINK_CAPABILITY, got %d want %d", len(data), linkCapabilityLen)
	}
	return LinkCapability{
		SupportedEvents:   binary.BigEndian.Uint32(data[0:4]),
		SupportedCommands: binary.BigEndian.Uint32(data[4:8]),
		MaxBandwidthKbps:  binary.BigEndian.Uint32(data[8:12]),
		TypicalLatencyMs:  binary.BigEndian.Uint32(data[12:16]),
		LinkType:          data[16],
		SecurityLevel:     data[17],
		MTU:               binary.BigEndian.Uint16(data[18:20]),
		IsAsymmetric:      data[20] != 0,
	}, nil
}

// LinkParameters carries a link's current live parameters (mih_protocol.h LINK_PARAMETERS).
type LinkParameters struct {
	CurrentTxRateKbps      uint32
	CurrentRxRateKbps      uint32
	SignalStrengthDbm      int32
	SignalQuality          uint8
	CurrentLatencyMs       uint32
	CurrentJitterMs        uint32
	PacketLossRate         float32
	AvailableBandwidthKbps uint32
	IPAddress              uint32
	Netmask                uint32
	Gateway                uint32
	LinkState              uint8 // 0=Down, 1=Up, 2=GoingDown
	ActiveBearers          uint16
}

const linkParametersLen = 4 + 4 + 4 + 1 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 1 + 2

func encodeLinkParameters(p LinkParameters) []byte {
	buf := make([]byte, linkParametersLen)
	off := 0
	putU32 := func(v uint32) { binary.BigEndian.PutUint32(buf[off:off+4], v); off += 4 }
	putU32(p.CurrentTxRateKbps)
	putU32(p.CurrentRxRateKbps)
	putU32(uint32(p.SignalStrengthDbm))
	buf[off] = p.SignalQuality
	off++
	putU32(p.CurrentLatencyMs)
	putU32(p.CurrentJitterMs)
	putU32(math.Float32bits(p.PacketLossRate))
	putU32(p.AvailableBandwidthKbps)
	putU32(p.IPAddress)
	putU32(p.Netmask)
	putU32(p.Gateway)
	buf[off] = p.LinkState
	off++
	binary.BigEndian.PutUint16(buf[off:off+2], p.ActiveBearers)
	return buf
}

func decodeLinkParameters(data []byte) (LinkParameters, error) {
	if len(data) < linkParametersLen {
		return LinkParameters{}, fmt.Errorf("mihwire: short LINK_PARAMETERS, got %d want %d", len(data), linkParametersLen)
	}
	off := 0
	getU32 := func() uint32 { v := binary.BigEndian.Uint32(data[off : off+4]); off += 4; return v }
	var p LinkParameters
	p.CurrentTxRateKbps = getU32()
	p.CurrentRxRateKbps = getU32()
	p.SignalStrengthDbm = int32(getU32())
	p.SignalQuality = data[off]
	off++
	p.CurrentLatencyMs = getU32()
	p.CurrentJitterMs = getU32()
	p.PacketLossRate = math.Float32frombits(getU32())
	p.AvailableBandwidthKbps = getU32()
	p.IPAddress = getU32()
	p.Netmask = getU32()
	p.Gateway = getU32()
	p.LinkState = data[off]
	off++
	p.ActiveBearers = binary.BigEndian.Uint16(data[off : off+2])
	return p, nil
}

// QoSParam is the QoS contract requested or confirmed for a bearer.
type QoSParam struct {
	CosID            uint8
	ForwardLinkRate  uint32
	ReturnLinkRate   uint32
	MinPkTxDelayMs   uint32
	AvgPkTxDelayMs   uint32
	MaxPkTxDelayMs   uint32
	PkDelayJitterMs  uint32
	PkLossRate       float32
}

const qosParamLen = 1 + 4 + 4 + 4 + 4 + 4 + 4 + 4

func encodeQoSParam(q QoSParam) []byte {
	buf := make([]byte, qosParamLen)
	buf[0] = q.CosID
	off := 1
	putU32 := func(v uint32) { binary.BigEndian.PutUint32(buf[off:off+4], v); off += 4 }
	putU32(q.ForwardLinkRate)
	putU32(q.ReturnLinkRate)
	putU32(q.MinPkTxDelayMs)
	putU32(q.AvgPkTxDelayMs)
	putU32(q.MaxPkTxDelayMs)
	putU32(q.PkDelayJitterMs)
	putU32(math.Float32bits(q.PkLossRate))
	return buf
}

func decodeQoSParam(data []byte) (QoSParam, error) {
	if len(data) < qosParamLen {
		return QoSParam{}, fmt.Errorf("mihwire: short QOS_PARAM, got %d want %d", len(data), qosParamLen)
	}
	var q QoSParam
	q.CosID = data[0]
	off := 1
	getU32 := func() uint32 { v := binary.BigEndian.Uint32(data[off : off+4]); off += 4; return v }
	q.ForwardLinkRate = getU32()
	q.ReturnLinkRate = getU32()
	q.MinPkTxDelayMs = getU32()
	q.AvgPkTxDelayMs = getU32()
	q.MaxPkTxDelayMs = getU32()
	q.PkDelayJitterMs = getU32()
	q.PkLossRate = math.Float32frombits(getU32())
	return q, nil
}

// ValidateQoS mirrors validate_qos_params from mih_protocol.h: at least one
// direction must carry bandwidth, and loss rate must be a valid fraction.
func ValidateQoS(q QoSParam) error {
	if q.ForwardLinkRate == 0 && q.ReturnLinkRate == 0 {
		return fmt.Errorf("mihwire: QoS forward and return rate both zero")
	}
	if q.PkLossRate < 0 || q.PkLossRate > 1 {
		return fmt.Errorf("mihwire: QoS loss rate %v out of [0,1]", q.PkLossRate)
	}
	return nil
}

// ExtLinkRegisterRequest registers a DLM and its link with the core (vendor primitive 0x8101).
type ExtLinkRegisterRequest struct {
	LinkIdentifier LinkTupleID
	Capability     LinkCapability
}

func EncodeExtLinkRegisterRequest(r ExtLinkRegisterRequest) []byte {
	return append(encodeLinkTupleID(r.LinkIdentifier), encodeLinkCapability(r.Capability)...)
}

func DecodeExtLinkRegisterRequest(data []byte) (ExtLinkRegisterRequest, error) {
	tuple, err := decodeLinkTupleID(data)
	if err != nil {
		return ExtLinkRegisterRequest{}, err
	}
	cap, err := decodeLinkCapability(data[linkTupleIDLen:])
	if err != nil {
		return ExtLinkRegisterRequest{}, err
	}
	return ExtLinkRegisterRequest{LinkIdentifier: tuple, Capability: cap}, nil
}

// ExtLinkRegisterConfirm answers a registration with an assigned id or a status failure.
type ExtLinkRegisterConfirm struct {
	Status     uint8
	AssignedID uint32
}

func EncodeExtLinkRegisterConfirm(c ExtLinkRegisterConfirm) []byte {
	buf := make([]byte, 5)
	buf[0] = c.Status
	binary.BigEndian.PutUint32(buf[1:5], c.AssignedID)
	return buf
}

func DecodeExtLinkRegisterConfirm(data []byte) (ExtLinkRegisterConfirm, error) {
	if len(data) < 5 {
		return ExtLinkRegisterConfirm{}, fmt.Errorf("mihwire: short Ext_Link_Register.confirm")
	}
	return ExtLinkRegisterConfirm{Status: data[0], AssignedID: binary.BigEndian.Uint32(data[1:5])}, nil
}

// LinkDetectedIndication announces a newly discovered but not-yet-registered link.
type LinkDetectedIndication struct {
	LinkIdentifier LinkTupleID
}

func EncodeLinkDetectedIndication(m LinkDetectedIndication) []byte {
	return encodeLinkTupleID(m.LinkIdentifier)
}

func DecodeLinkDetectedIndication(data []byte) (LinkDetectedIndication, error) {
	tuple, err := decodeLinkTupleID(data)
	if err != nil {
		return LinkDetectedIndication{}, err
	}
	return LinkDetectedIndication{LinkIdentifier: tuple}, nil
}

// LinkUpIndication announces that a link has become available.
type LinkUpIndication struct {
	LinkIdentifier LinkTupleID
	Parameters     LinkParameters
	UpTimestamp    uint32
}

func EncodeLinkUpIndication(m LinkUpIndication) []byte {
	buf := append(encodeLinkTupleID(m.LinkIdentifier), encodeLinkParameters(m.Parameters)...)
	ts := make([]byte, 4)
	binary.BigEndian.PutUint32(ts, m.UpTimestamp)
	return append(buf, ts...)
}

func DecodeLinkUpIndication(data []byte) (LinkUpIndication, error) {
	tuple, err := decodeLinkTupleID(data)
	if err != nil {
		return LinkUpIndication{}, err
	}
	off := linkTupleIDLen
	params, err := decodeLinkParameters(data[off:])
	if err != nil {
		return LinkUpIndication{}, err
	}
	off += linkParametersLen
	if len(data) < off+4 {
		return LinkUpIndication{}, fmt.Errorf("mihwire: short Link_Up.indication")
	}
	ts := binary.BigEndian.Uint32(data[off : off+4])
	return LinkUpIndication{LinkIdentifier: tuple, Parameters: params, UpTimestamp: ts}, nil
}

// LinkDownIndication announces that a link has gone away.
type LinkDownIndication struct {
	LinkIdentifier LinkTupleID
	ReasonCode     uint8
	ReasonText     string // max 64 bytes
	DownTimestamp  uint32
}

func EncodeLinkDownIndication(m LinkDownIndication) []byte {
	buf := encodeLinkTupleID(m.LinkIdentifier)
	buf = append(buf, m.ReasonCode)
	reason := make([]byte, 64)
	putFixedString(reason, m.ReasonText)
	buf = append(buf, reason...)
	ts := make([]byte, 4)
	binary.BigEndian.PutUint32(ts, m.DownTimestamp)
	return append(buf, ts...)
}

func DecodeLinkDownIndication(data []byte) (LinkDownIndication, error) {
	tuple, err := decodeLinkTupleID(data)
	if err != nil {
		return LinkDownIndication{}, err
	}
	off := linkTupleIDLen
	if len(data) < off+1+64+4 {
		return LinkDownIndication{}, fmt.Errorf("mihwire: short Link_Down.indication")
	}
	reasonCode := data[off]
	off++
	reasonText := getFixedString(data[off : off+64])
	off += 64
	ts := binary.BigEndian.Uint32(data[off : off+4])
	return LinkDownIndication{LinkIdentifier: tuple, ReasonCode: reasonCode, ReasonText: reasonText, DownTimestamp: ts}, nil
}

// LinkParametersReportIndication carries a DLM-pushed parameter update.
type LinkParametersReportIndication struct {
	LinkIdentifier  LinkTupleID
	ChangedParams   uint16
	Parameters      LinkParameters
	ReportTimestamp uint32
}

func EncodeLinkParametersReportIndication(m LinkParametersReportIndication) []byte {
	buf := encodeLinkTupleID(m.LinkIdentifier)
	ch := make([]byte, 2)
	binary.BigEndian.PutUint16(ch, m.ChangedParams)
	buf = append(buf, ch...)
	buf = append(buf, encodeLinkParameters(m.Parameters)...)
	ts := make([]byte, 4)
	binary.BigEndian.PutUint32(ts, m.ReportTimestamp)
	return append(buf, ts...)
}

func DecodeLinkParametersReportIndication(data []byte) (LinkParametersReportIndication, error) {
	tuple, err := decodeLinkTupleID(data)
	if err != nil {
		return LinkParametersReportIndication{}, err
	}
	off := linkTupleIDLen
	if len(data) < off+2 {
		return LinkParametersReportIndication{}, fmt.Errorf("mihwire: short Link_Parameters_Report.indication")
	}
	changed := binary.BigEndian.Uint16(data[off : off+2])
	off += 2
	params, err := decodeLinkParameters(data[off:])
	if err != nil {
		return LinkParametersReportIndication{}, err
	}
	off += linkParametersLen
	if len(data) < off+4 {
		return LinkParametersReportIndication{}, fmt.Errorf("mihwire: short Link_Parameters_Report.indication timestamp")
	}
	ts := binary.BigEndian.Uint32(data[off : off+4])
	return LinkParametersReportIndication{LinkIdentifier: tuple, ChangedParams: changed, Parameters: params, ReportTimestamp: ts}, nil
}

// LinkGoingDownIndication warns that a link is about to go away, ahead of
// the Link_Down.indication that will follow it.
type LinkGoingDownIndication struct {
	LinkIdentifier LinkTupleID
	TimeInterval   uint32 // milliseconds until the link is expected to go down, 0 if unknown
}

func EncodeLinkGoingDownIndication(m LinkGoingDownIndication) []byte {
	buf := encodeLinkTupleID(m.LinkIdentifier)
	ti := make([]byte, 4)
	binary.BigEndian.PutUint32(ti, m.TimeInterval)
	return append(buf, ti...)
}

func DecodeLinkGoingDownIndication(data []byte) (LinkGoingDownIndication, error) {
	tuple, err := decodeLinkTupleID(data)
	if err != nil {
		return LinkGoingDownIndication{}, err
	}
	off := linkTupleIDLen
	if len(data) < off+4 {
		return LinkGoingDownIndication{}, fmt.Errorf("mihwire: short Link_Going_Down.indication")
	}
	return LinkGoingDownIndication{LinkIdentifier: tuple, TimeInterval: binary.BigEndian.Uint32(data[off : off+4])}, nil
}

// ResourceAction distinguishes bearer allocation from release.
type ResourceAction uint8

const (
	ResourceActionRequest ResourceAction = 0
	ResourceActionRelease ResourceAction = 1
)

// LinkResourceRequest is the ARINC 839 replacement for IEEE 802.21's Link_Action.
type LinkResourceRequest struct {
	Action       ResourceAction
	HasBearerID  bool
	BearerID     uint8
	HasQoSParams bool
	QoS          QoSParam
}

func EncodeLinkResourceRequest(r LinkResourceRequest) []byte {
	buf := []byte{byte(r.Action), boolByte(r.HasBearerID), r.BearerID, boolByte(r.HasQoSParams)}
	if r.HasQoSParams {
		buf = append(buf, encodeQoSParam(r.QoS)...)
	}
	return buf
}

func DecodeLinkResourceRequest(data []byte) (LinkResourceRequest, error) {
	if len(data) < 4 {
		return LinkResourceRequest{}, fmt.Errorf("mihwire: short Link_Resource.request")
	}
	r := LinkResourceRequest{
		Action:      ResourceAction(data[0]),
		HasBearerID: data[1] != 0,
		BearerID:    data[2],
	}
	r.HasQoSParams = data[3] != 0
	if r.HasQoSParams {
		qos, err := decodeQoSParam(data[4:])
		if err != nil {
			return LinkResourceRequest{}, err
		}
		r.QoS = qos
	}
	return r, nil
}

// LinkResourceConfirm answers a LinkResourceRequest.
type LinkResourceConfirm struct {
	Status      uint8
	HasBearerID bool
	BearerID    uint8
}

func EncodeLinkResourceConfirm(c LinkResourceConfirm) []byte {
	return []byte{c.Status, boolByte(c.HasBearerID), c.BearerID}
}

func DecodeLinkResourceConfirm(data []byte) (LinkResourceConfirm, error) {
	if len(data) < 3 {
		return LinkResourceConfirm{}, fmt.Errorf("mihwire: short Link_Resource.confirm")
	}
	return LinkResourceConfirm{Status: data[0], HasBearerID: data[1] != 0, BearerID: data[2]}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Heartbeat is the headerless UDP frame legacy DLM prototypes use to announce presence (§6).
type Heartbeat struct {
	DLMName   string // max 32 bytes
	LinkType  uint8
	Timestamp uint32
}

const heartbeatLen = 32 + 1 + 4

func EncodeHeartbeat(h Heartbeat) []byte {
	buf := make([]byte, heartbeatLen)
	putFixedString(buf[0:32], h.DLMName)
	buf[32] = h.LinkType
	binary.BigEndian.PutUint32(buf[33:37], h.Timestamp)
	return buf
}

func DecodeHeartbeat(data []byte) (Heartbeat, error) {
	if len(data) < heartbeatLen {
		return Heartbeat{}, fmt.Errorf("mihwire: short heartbeat frame, got %d want %d", len(data), heartbeatLen)
	}
	return Heartbeat{
		DLMName:   getFixedString(data[0:32]),
		LinkType:  data[32],
		Timestamp: binary.BigEndian.Uint32(data[33:37]),
	}, nil
}

// HeartbeatAck answers an Ext_Heartbeat on the stream and UDP transports;
// ServerTimestamp carries the heartbeat's own Timestamp back unchanged.
type HeartbeatAck struct {
	ServerTimestamp uint32
}

func EncodeHeartbeatAck(a HeartbeatAck) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, a.ServerTimestamp)
	return buf
}

func DecodeHeartbeatAck(data []byte) (HeartbeatAck, error) {
	if len(data) < 4 {
		return HeartbeatAck{}, fmt.Errorf("mihwire: short Ext_Heartbeat_Ack")
	}
	return HeartbeatAck{ServerTimestamp: binary.BigEndian.Uint32(data)}, nil
}
