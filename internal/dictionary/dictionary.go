// Package dictionary is the protocol dictionary: the catalog of commands and
// attributes understood on both the north-bound (Diameter-style) and
// south-bound (MIH) interfaces, plus the stable status/result code tables.
// It validates that an AVP code or primitive code is one this build knows
// about before a decoder trusts its payload shape.
package dictionary

import "fmt"

// North-bound command codes (command names are stable; codes are internal only).
const (
	CmdMCAR = "MCAR" // Client auth request
	CmdMCAA = "MCAA" // Client auth answer
	CmdMCCR = "MCCR" // Communication request
	CmdMCCA = "MCCA" // Communication answer
	CmdMNTR = "MNTR" // Server-initiated session modify (push)
	CmdMNTA = "MNTA" // MNTR ack
	CmdMSCR = "MSCR" // Status subscribe / status broadcast
	CmdMSCA = "MSCA" // MSCR ack
)

// AVP codes for the north-bound protocol, grounded on the shape of
// Protei_Monitoring/bin/pkg/decoder/diameter/diameter.go's AVP tables,
// populated with this spec's own vocabulary rather than the 3GPP one.
const (
	AVPUserName              uint32 = 1
	AVPSessionID             uint32 = 263
	AVPOriginHost            uint32 = 264
	AVPOriginRealm           uint32 = 296
	AVPDestinationRealm      uint32 = 283
	AVPResultCode            uint32 = 268
	AVPErrorMessage          uint32 = 281
	AVPClientPassword        uint32 = 20001
	AVPServerPassword        uint32 = 20002
	AVPProfileName           uint32 = 20010
	AVPRequestedBandwidth    uint32 = 20011
	AVPRequestedRetBandwidth uint32 = 20012
	AVPPriorityClass         uint32 = 20013
	AVPQoSLevel              uint32 = 20014
	AVPDLMName               uint32 = 20015
	AVPFlightPhase           uint32 = 20016
	AVPAltitude              uint32 = 20017
	AVPGrantedBandwidth      uint32 = 20020
	AVPGrantedRetBandwidth   uint32 = 20021
	AVPPriorityType          uint32 = 20022
	AVPAccountingEnabled     uint32 = 20023
	AVPKeepRequest           uint32 = 20024
	AVPAutoDetect            uint32 = 20025
	AVPTimeout               uint32 = 20026
	AVPAirport               uint32 = 20027
	AVPGatewayIPAddress      uint32 = 20028
	AVPLinkNumber            uint32 = 20029
	AVPMagicStatusCode       uint32 = 20030
	AVPSubscriptionLevel     uint32 = 20031
	AVPRegisteredClients     uint32 = 20032
	AVPDLMList               uint32 = 20033
	AVPDLMInfo               uint32 = 20034
	AVPDLMAvailable          uint32 = 20035
	AVPDLMMaxLinks           uint32 = 20036
	AVPDLMMaxBandwidth       uint32 = 20037
	AVPDLMAllocLinks         uint32 = 20038
	AVPDLMAllocBandwidth     uint32 = 20039
	AVPDLMQoSLevelList       uint32 = 20040
)

var avpNames = map[uint32]string{
	AVPUserName:              "User-Name",
	AVPSessionID:             "Session-Id",
	AVPOriginHost:            "Origin-Host",
	AVPOriginRealm:           "Origin-Realm",
	AVPDestinationRealm:      "Destination-Realm",
	AVPResultCode:            "Result-Code",
	AVPErrorMessage:          "Error-Message",
	AVPClientPassword:        "Client-Password",
	AVPServerPassword:        "Server-Password",
	AVPProfileName:           "Profile-Name",
	AVPRequestedBandwidth:    "Requested-Bandwidth",
	AVPRequestedRetBandwidth: "Requested-Return-Bandwidth",
	AVPPriorityClass:         "Priority-Class",
	AVPQoSLevel:              "QoS-Level",
	AVPDLMName:               "DLM-Name",
	AVPFlightPhase:           "Flight-Phase",
	AVPAltitude:              "Altitude",
	AVPGrantedBandwidth:      "Granted-Bandwidth",
	AVPGrantedRetBandwidth:   "Granted-Return-Bandwidth",
	AVPPriorityType:          "Priority-Type",
	AVPAccountingEnabled:     "Accounting-Enabled",
	AVPKeepRequest:           "Keep-Request",
	AVPAutoDetect:            "Auto-Detect",
	AVPTimeout:               "Timeout",
	AVPAirport:               "Airport",
	AVPGatewayIPAddress:      "Gateway-IPAddress",
	AVPLinkNumber:            "Link-Number",
	AVPMagicStatusCode:       "MAGIC-Status-Code",
	AVPSubscriptionLevel:     "Subscription-Level",
	AVPRegisteredClients:     "Registered-Clients",
	AVPDLMList:               "DLM-List",
	AVPDLMInfo:               "DLM-Info",
	AVPDLMAvailable:          "DLM-Available",
	AVPDLMMaxLinks:           "DLM-Max-Links",
	AVPDLMMaxBandwidth:       "DLM-Max-Bandwidth",
	AVPDLMAllocLinks:         "DLM-Allocated-Links",
	AVPDLMAllocBandwidth:     "DLM-Allocated-Bandwidth",
	AVPDLMQoSLevelList:       "DLM-QoS-Level-List",
}

// AVPName resolves an AVP code to its symbolic name, or a numeric placeholder if unknown.
func AVPName(code uint32) string {
	if name, ok := avpNames[code]; ok {
		return name
	}
	return fmt.Sprintf("AVP-%d", code)
}

// KnownAVP reports whether code is in the configured AVP catalog.
func KnownAVP(code uint32) bool {
	_, ok := avpNames[code]
	return ok
}

// MAGIC-Status-Code enumeration (§6). Stable values.
const (
	MagicStatusSuccess         uint32 = 0
	MagicStatusNoFreeBandwidth uint32 = 1016
	MagicStatusLinkError       uint32 = 2007
	MagicStatusForcedRerouting uint32 = 2010 // local MAGIC extension, see SPEC_FULL.md Open Question 2
)

var magicStatusNames = map[uint32]string{
	MagicStatusSuccess:         "SUCCESS",
	MagicStatusNoFreeBandwidth: "NO_FREE_BANDWIDTH",
	MagicStatusLinkError:       "LINK_ERROR",
	MagicStatusForcedRerouting: "FORCED_REROUTING",
}

// MagicStatusName resolves a MAGIC-Status-Code to its name.
func MagicStatusName(code uint32) string {
	if name, ok := magicStatusNames[code]; ok {
		return name
	}
	return fmt.Sprintf("MAGIC-%d", code)
}

// Standard Result-Code enumeration (§6).
const (
	ResultSuccess             uint32 = 2001
	ResultAuthFailed          uint32 = 4001
	ResultAuthzFailed         uint32 = 4002
	ResultInvalidCredentials  uint32 = 4003
	ResultServiceUnavailable  uint32 = 4004
	ResultInsufficientResources uint32 = 4005
	ResultInvalidRequest      uint32 = 4006
)

var resultNames = map[uint32]string{
	ResultSuccess:               "DIAMETER_SUCCESS",
	ResultAuthFailed:            "AUTHENTICATION_REJECTED",
	ResultAuthzFailed:           "AUTHORIZATION_REJECTED",
	ResultInvalidCredentials:    "INVALID_CREDENTIALS",
	ResultServiceUnavailable:    "SERVICE_UNAVAILABLE",
	ResultInsufficientResources: "INSUFFICIENT_RESOURCES",
	ResultInvalidRequest:        "INVALID_REQUEST",
}

// ResultName resolves a standard Result-Code to its name.
func ResultName(code uint32) string {
	if name, ok := resultNames[code]; ok {
		return name
	}
	return fmt.Sprintf("RESULT-%d", code)
}

// South-bound MIH primitive codes (§6), ARINC 839 / IEEE 802.21 profile.
// 0x01xx request/confirm, 0x02xx indication, 0x03xx ARINC-839 extension, 0x8xxx vendor extension.
const (
	MIHLinkCapabilityDiscoverReq uint16 = 0x0101
	MIHLinkCapabilityDiscoverCnf uint16 = 0x0102
	MIHLinkEventSubscribeReq     uint16 = 0x0103
	MIHLinkEventSubscribeCnf     uint16 = 0x0104
	MIHLinkEventUnsubscribeReq   uint16 = 0x0105
	MIHLinkEventUnsubscribeCnf   uint16 = 0x0106
	MIHLinkGetParametersReq      uint16 = 0x0107
	MIHLinkGetParametersCnf      uint16 = 0x0108

	MIHLinkDetectedInd          uint16 = 0x0201
	MIHLinkUpInd                uint16 = 0x0202
	MIHLinkDownInd              uint16 = 0x0203
	MIHLinkGoingDownInd         uint16 = 0x0204
	MIHLinkParametersReportInd  uint16 = 0x0205

	MIHLinkResourceReq uint16 = 0x0301
	MIHLinkResourceCnf uint16 = 0x0302

	MIHExtLinkRegisterReq  uint16 = 0x8101
	MIHExtLinkRegisterCnf  uint16 = 0x8102
	MIHExtHeartbeat        uint16 = 0x8F01
	MIHExtHeartbeatAck     uint16 = 0x8F02
)

var primitiveNames = map[uint16]string{
	MIHLinkCapabilityDiscoverReq: "Link_Capability_Discover.request",
	MIHLinkCapabilityDiscoverCnf: "Link_Capability_Discover.confirm",
	MIHLinkEventSubscribeReq:     "Link_Event_Subscribe.request",
	MIHLinkEventSubscribeCnf:     "Link_Event_Subscribe.confirm",
	MIHLinkEventUnsubscribeReq:   "Link_Event_Unsubscribe.request",
	MIHLinkEventUnsubscribeCnf:   "Link_Event_Unsubscribe.confirm",
	MIHLinkGetParametersReq:      "Link_Get_Parameters.request",
	MIHLinkGetParametersCnf:      "Link_Get_Parameters.confirm",
	MIHLinkDetectedInd:           "Link_Detected.indication",
	MIHLinkUpInd:                 "Link_Up.indication",
	MIHLinkDownInd:               "Link_Down.indication",
	MIHLinkGoingDownInd:          "Link_Going_Down.indication",
	MIHLinkParametersReportInd:   "Link_Parameters_Report.indication",
	MIHLinkResourceReq:           "Link_Resource.request",
	MIHLinkResourceCnf:           "Link_Resource.confirm",
	MIHExtLinkRegisterReq:        "Ext_Link_Register.request",
	MIHExtLinkRegisterCnf:        "Ext_Link_Register.confirm",
	MIHExtHeartbeat:              "Ext_Heartbeat",
	MIHExtHeartbeatAck:           "Ext_Heartbeat_Ack",
}

// PrimitiveName resolves a MIH primitive code to its symbolic name.
func PrimitiveName(code uint16) string {
	if name, ok := primitiveNames[code]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", code)
}

// KnownPrimitive reports whether code is a primitive this build understands.
// Unknown codes are a protocol error, not something to heuristically guess at (Design Note §9).
func KnownPrimitive(code uint16) bool {
	_, ok := primitiveNames[code]
	return ok
}

// LinkType enumerates the ARINC 839 link technology codes (mih_protocol.h LINK_PARAM_TYPE).
type LinkType uint8

const (
	LinkTypeGeneric  LinkType = 0x00
	LinkTypeEthernet LinkType = 0x01
	LinkType80211    LinkType = 0x02
	LinkTypeUMTS     LinkType = 0x10
	LinkTypeFDDLTE   LinkType = 0x12
	LinkType5GNR     LinkType = 0x15
	LinkTypeSatcomL  LinkType = 0x21
	LinkTypeSatcomKu LinkType = 0x22
	LinkTypeSatcomKa LinkType = 0x23
	LinkTypeIridium  LinkType = 0x24
	LinkTypeVDL2     LinkType = 0x30
	LinkTypeHFDL     LinkType = 0x33
	VendorRangeStart LinkType = 0x80
	VendorRangeEnd   LinkType = 0xFF
)

var linkTypeNames = map[LinkType]string{
	LinkTypeGeneric:  "GENERIC",
	LinkTypeEthernet: "ETHERNET",
	LinkType80211:    "802.11",
	LinkTypeUMTS:     "3G/UMTS",
	LinkTypeFDDLTE:   "4G/LTE",
	LinkType5GNR:     "5G/NR",
	LinkTypeSatcomL:  "SATCOM-L",
	LinkTypeSatcomKu: "SATCOM-Ku",
	LinkTypeSatcomKa: "SATCOM-Ka",
	LinkTypeIridium:  "IRIDIUM",
	LinkTypeVDL2:     "VDL-Mode2",
	LinkTypeHFDL:     "HFDL",
}

// String renders a LinkType name, falling back to "VENDOR_SPECIFIC" or "UNKNOWN".
func (t LinkType) String() string {
	if name, ok := linkTypeNames[t]; ok {
		return name
	}
	if t >= VendorRangeStart {
		return "VENDOR_SPECIFIC"
	}
	return "UNKNOWN"
}

// IsSatellite reports whether t is one of the satellite link types (used by the policy engine's
// link-type stability bonus).
func (t LinkType) IsSatellite() bool {
	switch t {
	case LinkTypeSatcomL, LinkTypeSatcomKu, LinkTypeSatcomKa, LinkTypeIridium:
		return true
	}
	return false
}

// IsCellular reports whether t is one of the cellular link types.
func (t LinkType) IsCellular() bool {
	switch t {
	case LinkTypeUMTS, LinkTypeFDDLTE, LinkType5GNR:
		return true
	}
	return false
}

// IsHybrid reports whether t is one of the aviation-specific link types that
// blend ground and air-to-air characteristics (VDL/HFDL and relatives) —
// these get the DLM_TYPE_HYBRID stability bonus in the scoring function.
func (t LinkType) IsHybrid() bool {
	switch t {
	case LinkTypeVDL2, LinkTypeHFDL:
		return true
	}
	return false
}

// linkTypeByConfigName maps the short, config-friendly spelling used in the
// datalink catalog's link_type field to its wire LinkType. Distinct from
// linkTypeNames, which is the longer display form used by String().
var linkTypeByConfigName = map[string]LinkType{
	"GENERIC":    LinkTypeGeneric,
	"ETHERNET":   LinkTypeEthernet,
	"WIFI":       LinkType80211,
	"UMTS":       LinkTypeUMTS,
	"LTE":        LinkTypeFDDLTE,
	"5GNR":       LinkType5GNR,
	"SATCOM_L":   LinkTypeSatcomL,
	"SATCOM_KU":  LinkTypeSatcomKu,
	"SATCOM_KA":  LinkTypeSatcomKa,
	"IRIDIUM":    LinkTypeIridium,
	"VDL2":       LinkTypeVDL2,
	"HFDL":       LinkTypeHFDL,
}

// ParseLinkType resolves a datalink catalog entry's link_type string to its
// wire LinkType, for config.DatalinkConfig entries loaded from YAML.
func ParseLinkType(name string) (LinkType, bool) {
	t, ok := linkTypeByConfigName[name]
	return t, ok
}
