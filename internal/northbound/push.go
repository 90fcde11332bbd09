package northbound

import (
	"github.com/arinc839/cmcore/internal/dictionary"
	"github.com/arinc839/cmcore/internal/pushengine"
	"github.com/arinc839/cmcore/internal/wire/diameterwire"
)

// MNTRSender adapts Transport into a pushengine.MNTRSender, so the push
// engine can force a session-modify notification out over whichever
// connection that session is currently bound to, without knowing anything
// about net.Conn itself.
func (t *Transport) MNTRSender() pushengine.MNTRSender {
	return func(p pushengine.MNTRParams) error {
		avps := []diameterwire.AVP{
			diameterwire.StringAVP(dictionary.AVPSessionID, p.SessionID),
			diameterwire.Uint32AVP(dictionary.AVPGrantedBandwidth, p.NewGrantedFwdBWKbps),
			diameterwire.Uint32AVP(dictionary.AVPGrantedRetBandwidth, p.NewGrantedRetBWKbps),
		}
		if p.MagicStatusCode != 0 {
			avps = append(avps, diameterwire.Uint32AVP(dictionary.AVPMagicStatusCode, p.MagicStatusCode))
		}
		if p.ErrorMessage != "" {
			avps = append(avps, diameterwire.StringAVP(dictionary.AVPErrorMessage, p.ErrorMessage))
		}
		msg := diameterwire.Message{
			Header: diameterwire.Header{
				Flags:       0x80,
				CommandCode: commandNumbers[dictionary.CmdMNTR],
			},
			AVPs: avps,
		}
		return t.sendTo(p.SessionID, msg)
	}
}

// MSCRSender adapts Transport into a pushengine.MSCRSender for subscription broadcasts.
func (t *Transport) MSCRSender() pushengine.MSCRSender {
	return func(sessionID string, p pushengine.MSCRParams) error {
		avps := []diameterwire.AVP{
			diameterwire.StringAVP(dictionary.AVPSessionID, sessionID),
			diameterwire.Uint32AVP(dictionary.AVPRegisteredClients, uint32(p.RegisteredClients)),
		}
		if p.DLMName != "" {
			avps = append(avps, diameterwire.StringAVP(dictionary.AVPDLMName, p.DLMName))
			avps = append(avps, diameterwire.Uint32AVP(dictionary.AVPDLMAvailable, boolToUint32(p.DLMAvailable)))
		}
		msg := diameterwire.Message{
			Header: diameterwire.Header{
				Flags:       0x80,
				CommandCode: commandNumbers[dictionary.CmdMSCR],
			},
			AVPs: avps,
		}
		return t.sendTo(sessionID, msg)
	}
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
