package southbound

import (
	"net"

	"github.com/arinc839/cmcore/internal/logger"
	"github.com/arinc839/cmcore/internal/wire/mihwire"
)

// HeartbeatTransport serves the UDP heartbeat listener for legacy DLM
// prototypes that never open a stream connection (§4.5, §6): a headerless
// fixed Heartbeat frame in, a HeartbeatAck reply out, liveness touched on
// every packet.
type HeartbeatTransport struct {
	addr       string
	dispatcher *Dispatcher

	conn   *net.UDPConn
	stopCh chan struct{}
}

// NewHeartbeatTransport builds a HeartbeatTransport bound to addr.
func NewHeartbeatTransport(addr string, dispatcher *Dispatcher) *HeartbeatTransport {
	return &HeartbeatTransport{addr: addr, dispatcher: dispatcher, stopCh: make(chan struct{})}
}

// ListenAndServe opens the UDP socket and reads heartbeats until Close.
func (h *HeartbeatTransport) ListenAndServe() error {
	udpAddr, err := net.ResolveUDPAddr("udp", h.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	h.conn = conn

	logger.Info("south-bound heartbeat transport listening", "addr", h.addr)
	buf := make([]byte, 128)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-h.stopCh:
				return nil
			default:
				logger.Warn("south-bound heartbeat read error", "error", err.Error())
				return err
			}
		}
		h.handlePacket(conn, from, buf[:n])
	}
}

func (h *HeartbeatTransport) handlePacket(conn *net.UDPConn, from *net.UDPAddr, data []byte) {
	hb, err := mihwire.DecodeHeartbeat(data)
	if err != nil {
		logger.Warn("south-bound: UDP heartbeat decode failed", "error", err.Error(), "from", from.String())
		return
	}
	h.dispatcher.links.Touch(hb.DLMName)

	ack := mihwire.EncodeHeartbeatAck(mihwire.HeartbeatAck{ServerTimestamp: hb.Timestamp})
	if _, err := conn.WriteToUDP(ack, from); err != nil {
		logger.Warn("south-bound: UDP heartbeat ack write failed", "error", err.Error())
	}
}

// Close stops the heartbeat listener.
func (h *HeartbeatTransport) Close() error {
	close(h.stopCh)
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}
