// Package northbound implements the client-facing, Diameter-style
// request/answer protocol: MCAR/MCAA (authentication), MCCR/MCCA
// (communication/link-selection), MNTR/MNTA (server push ack), and
// MSCR/MSCA (status subscribe/broadcast). Dispatcher wires the wire codec
// in internal/wire/diameterwire to the session registry, policy engine, and
// push engine, the same way the teacher's Application struct in
// cmd/protei-monitoring/main.go wires its decoder registry to storage and
// correlation rather than doing protocol work inline in main.
package northbound

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/arinc839/cmcore/internal/audit"
	"github.com/arinc839/cmcore/internal/config"
	"github.com/arinc839/cmcore/internal/dictionary"
	"github.com/arinc839/cmcore/internal/linkregistry"
	"github.com/arinc839/cmcore/internal/logger"
	"github.com/arinc839/cmcore/internal/policy"
	"github.com/arinc839/cmcore/internal/pushengine"
	"github.com/arinc839/cmcore/internal/sessionregistry"
	"github.com/arinc839/cmcore/internal/wire/diameterwire"
)

// Dispatcher handles one decoded north-bound message at a time and returns
// the answer message to write back. It holds no transport state of its own;
// Transport (transport.go) owns the listener and per-connection framing.
type Dispatcher struct {
	cfg      *config.Config
	sessions *sessionregistry.Registry
	links    *linkregistry.Registry
	push     *pushengine.Engine
	audit    *audit.Sink // nil when no accounting sink is configured
}

// NewDispatcher builds a dispatcher against the shared registries and push engine.
func NewDispatcher(cfg *config.Config, sessions *sessionregistry.Registry, links *linkregistry.Registry, push *pushengine.Engine) *Dispatcher {
	return &Dispatcher{cfg: cfg, sessions: sessions, links: links, push: push}
}

// SetAuditSink attaches the accounting sink that session state transitions
// are recorded to. Optional — a nil sink (the default) simply skips recording.
func (d *Dispatcher) SetAuditSink(sink *audit.Sink) {
	d.audit = sink
}

// Handle dispatches one decoded request message to its command handler,
// returning the answer to send back. Unknown commands get a generic
// INVALID_REQUEST answer rather than being silently dropped.
func (d *Dispatcher) Handle(cmd string, req diameterwire.Message) diameterwire.Message {
	switch cmd {
	case dictionary.CmdMCAR:
		return d.handleMCAR(req)
	case dictionary.CmdMCCR:
		return d.handleMCCR(req)
	case dictionary.CmdMNTA:
		return d.handleMNTA(req)
	case dictionary.CmdMSCR:
		return d.handleMSCR(req)
	case dictionary.CmdMSCA:
		return d.handleMSCA(req)
	default:
		logger.Warn("north-bound: unrecognized command", "command", cmd)
		return answerWithResult(req, dictionary.ResultInvalidRequest, "unrecognized command "+cmd)
	}
}

func answerWithResult(req diameterwire.Message, resultCode uint32, errMsg string) diameterwire.Message {
	avps := []diameterwire.AVP{diameterwire.Uint32AVP(dictionary.AVPResultCode, resultCode)}
	if sessID, ok := req.FindString(dictionary.AVPSessionID); ok {
		avps = append(avps, diameterwire.StringAVP(dictionary.AVPSessionID, sessID))
	}
	if errMsg != "" {
		avps = append(avps, diameterwire.StringAVP(dictionary.AVPErrorMessage, errMsg))
	}
	return diameterwire.Message{
		Header: diameterwire.Header{
			Version:       req.Header.Version,
			Flags:         0, // answer: Request bit clear
			CommandCode:   req.Header.CommandCode,
			ApplicationID: req.Header.ApplicationID,
			HopByHopID:    req.Header.HopByHopID,
			EndToEndID:    req.Header.EndToEndID,
		},
		AVPs: avps,
	}
}

// handleMCAR authenticates a client against the shared credential hash and
// admits a new session, taking it from CONNECTING through AUTHENTICATED to
// ACTIVE before answering, mirroring the teacher's
// pkg/auth/auth.go Authenticate -> createSession shape, generalized from a
// username/password user table to this spec's single shared bcrypt hash.
func (d *Dispatcher) handleMCAR(req diameterwire.Message) diameterwire.Message {
	clientID, _ := req.FindString(dictionary.AVPUserName)
	password, _ := req.FindString(dictionary.AVPClientPassword)
	sessionID, _ := req.FindString(dictionary.AVPSessionID)
	realm, _ := req.FindString(dictionary.AVPOriginRealm)
	profileName, _ := req.FindString(dictionary.AVPProfileName)

	if clientID == "" || sessionID == "" {
		return answerWithResult(req, dictionary.ResultInvalidRequest, "missing client id or session id")
	}

	profile, ok := d.cfg.FindClientProfile(clientID)
	if !ok || !profile.Enabled {
		logger.Warn("MCAR: unknown or disabled client", "client", clientID)
		return answerWithResult(req, dictionary.ResultAuthzFailed, "client not provisioned")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(d.cfg.Security.ClientCredentialHash), []byte(password)); err != nil {
		logger.Warn("MCAR: credential check failed", "client", clientID)
		return answerWithResult(req, dictionary.ResultInvalidCredentials, "invalid credentials")
	}

	if _, err := d.sessions.Create(sessionID, clientID); err != nil {
		logger.Error("MCAR: session create failed", err, "session", sessionID)
		return answerWithResult(req, dictionary.ResultServiceUnavailable, err.Error())
	}
	if err := d.sessions.Authenticate(sessionID, realm, profileName); err != nil {
		logger.Error("MCAR: authenticate transition failed", err, "session", sessionID)
		return answerWithResult(req, dictionary.ResultAuthFailed, err.Error())
	}
	if err := d.sessions.Transition(sessionID, sessionregistry.StateActive); err != nil {
		logger.Error("MCAR: activate transition failed", err, "session", sessionID)
		return answerWithResult(req, dictionary.ResultAuthFailed, err.Error())
	}
	if d.audit != nil {
		d.audit.RecordSessionTransition(sessionID, sessionregistry.StateConnecting.String(), sessionregistry.StateActive.String())
	}

	logger.Info("client authenticated", "client", clientID, "session", sessionID, "realm", realm)
	return diameterwire.Message{
		Header: diameterwire.Header{CommandCode: req.Header.CommandCode, ApplicationID: req.Header.ApplicationID, HopByHopID: req.Header.HopByHopID, EndToEndID: req.Header.EndToEndID},
		AVPs: []diameterwire.AVP{
			diameterwire.StringAVP(dictionary.AVPSessionID, sessionID),
			diameterwire.Uint32AVP(dictionary.AVPResultCode, dictionary.ResultSuccess),
		},
	}
}

// handleMCCR runs the policy engine's link selection for a communication
// request and binds the chosen link to the session before answering —
// state mutation precedes the answer describing it, the same ordering
// invariant the Push Engine depends on for MNTR.
func (d *Dispatcher) handleMCCR(req diameterwire.Message) diameterwire.Message {
	sessionID, _ := req.FindString(dictionary.AVPSessionID)
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return answerWithResult(req, dictionary.ResultAuthFailed, "unknown session")
	}

	priorityClass, _ := req.FindUint32(dictionary.AVPPriorityClass)
	qosLevel, _ := req.FindUint32(dictionary.AVPQoSLevel)
	reqFwdBW, _ := req.FindUint32(dictionary.AVPRequestedBandwidth)
	reqRetBW, _ := req.FindUint32(dictionary.AVPRequestedRetBandwidth)
	flightPhase, _ := req.FindString(dictionary.AVPFlightPhase)

	dec := policy.SelectLink(d.cfg, policy.Request{
		ClientID:           sess.ClientID,
		FlightPhase:        flightPhase,
		PriorityClass:      int(priorityClass),
		QoSLevel:           int(qosLevel),
		ProfileName:        sess.ProfileName,
		RequestedFwdBWKbps: reqFwdBW,
		RequestedRetBWKbps: reqRetBW,
	}, d.linkSource())

	if !dec.Success {
		logger.Warn("MCCR: policy selection failed", "session", sessionID, "reason", dec.Reason)
		return answerWithResult(req, dictionary.ResultInsufficientResources, dec.Reason)
	}

	if err := d.sessions.BindLink(sessionID, dec.SelectedLinkName, dec.GrantedFwdBWKbps, dec.GrantedRetBWKbps); err != nil {
		logger.Error("MCCR: bind link failed", err, "session", sessionID)
		return answerWithResult(req, dictionary.ResultServiceUnavailable, err.Error())
	}

	logger.Info("link selected", "session", sessionID, "link", dec.SelectedLinkName, "traffic_class", dec.MatchedTrafficClass)
	return diameterwire.Message{
		Header: diameterwire.Header{CommandCode: req.Header.CommandCode, ApplicationID: req.Header.ApplicationID, HopByHopID: req.Header.HopByHopID, EndToEndID: req.Header.EndToEndID},
		AVPs: []diameterwire.AVP{
			diameterwire.StringAVP(dictionary.AVPSessionID, sessionID),
			diameterwire.Uint32AVP(dictionary.AVPResultCode, dictionary.ResultSuccess),
			diameterwire.StringAVP(dictionary.AVPDLMName, dec.SelectedLinkName),
			diameterwire.Uint32AVP(dictionary.AVPGrantedBandwidth, dec.GrantedFwdBWKbps),
			diameterwire.Uint32AVP(dictionary.AVPGrantedRetBandwidth, dec.GrantedRetBWKbps),
		},
	}
}

func (d *Dispatcher) linkSource() policy.LinkSource {
	return func(linkName string) (policy.CandidateLink, bool) {
		link, ok := d.links.Get(linkName)
		if !ok {
			return policy.CandidateLink{}, false
		}
		return policy.CandidateLink{
			LinkName:         link.LinkName,
			LinkType:         link.LinkType,
			MaxBandwidthKbps: link.MaxBandwidthKbps,
			TypicalLatencyMs: link.TypicalLatencyMs,
			IsActive:         link.State == linkregistry.LinkStateUp,
			ActiveBearers:    link.ActiveBearers,
		}, true
	}
}

// handleMNTA feeds an MNTR ack back into the push engine's ack tracking.
func (d *Dispatcher) handleMNTA(req diameterwire.Message) diameterwire.Message {
	sessionID, _ := req.FindString(dictionary.AVPSessionID)
	resultCode, _ := req.FindUint32(dictionary.AVPResultCode)
	d.push.OnMNTA(sessionID, resultCode)
	return diameterwire.Message{}
}

// handleMSCR records a client's subscription level for status broadcasts.
func (d *Dispatcher) handleMSCR(req diameterwire.Message) diameterwire.Message {
	sessionID, _ := req.FindString(dictionary.AVPSessionID)
	level, _ := req.FindUint32(dictionary.AVPSubscriptionLevel)

	if err := d.sessions.SetSubscriptionLevel(sessionID, int(level)); err != nil {
		logger.Warn("MSCR: subscription set failed", "session", sessionID, "error", err.Error())
		return answerWithResult(req, dictionary.ResultInvalidRequest, err.Error())
	}

	return diameterwire.Message{
		Header: diameterwire.Header{CommandCode: req.Header.CommandCode, ApplicationID: req.Header.ApplicationID, HopByHopID: req.Header.HopByHopID, EndToEndID: req.Header.EndToEndID},
		AVPs: []diameterwire.AVP{
			diameterwire.StringAVP(dictionary.AVPSessionID, sessionID),
			diameterwire.Uint32AVP(dictionary.AVPResultCode, dictionary.ResultSuccess),
		},
	}
}

// handleMSCA feeds an MSCR broadcast ack back into the push engine's
// subscription-drop logic (a send failure or non-success result clears it).
func (d *Dispatcher) handleMSCA(req diameterwire.Message) diameterwire.Message {
	sessionID, _ := req.FindString(dictionary.AVPSessionID)
	resultCode, _ := req.FindUint32(dictionary.AVPResultCode)
	d.push.OnMSCA(sessionID, resultCode)
	return diameterwire.Message{}
}
