package southbound

import (
	"net"
	"os"

	"github.com/arinc839/cmcore/internal/dictionary"
	"github.com/arinc839/cmcore/internal/logger"
	"github.com/arinc839/cmcore/internal/wire/mihwire"
)

// DatagramTransport serves the Unix SOCK_DGRAM MIH transport: one
// indication per datagram, framed with just the 2-byte primitive code
// (§4.5) — no transaction id, no confirm. Used by DLMs for the fire-and-forget
// indications (Link_Detected, Link_Up, Link_Down, Link_Parameters_Report)
// that don't need a request/confirm round trip.
type DatagramTransport struct {
	socketPath string
	dispatcher *Dispatcher

	conn   *net.UnixConn
	stopCh chan struct{}
}

// NewDatagramTransport builds a DatagramTransport bound to a Unix domain socket path.
func NewDatagramTransport(socketPath string, dispatcher *Dispatcher) *DatagramTransport {
	return &DatagramTransport{socketPath: socketPath, dispatcher: dispatcher, stopCh: make(chan struct{})}
}

// ListenAndServe opens the datagram socket and reads until Close.
func (d *DatagramTransport) ListenAndServe() error {
	os.Remove(d.socketPath)
	addr, err := net.ResolveUnixAddr("unixgram", d.socketPath)
	if err != nil {
		return err
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return err
	}
	d.conn = conn

	logger.Info("south-bound datagram transport listening", "socket", d.socketPath)
	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-d.stopCh:
				return nil
			default:
				logger.Warn("south-bound datagram read error", "error", err.Error())
				return err
			}
		}
		d.handleDatagram(buf[:n])
	}
}

func (d *DatagramTransport) handleDatagram(data []byte) {
	primitiveCode, err := mihwire.DecodeDatagramHeader(data)
	if err != nil {
		logger.Warn("south-bound: datagram header decode failed", "error", err.Error())
		return
	}
	body := data[mihwire.DatagramHeaderLen:]

	if !dictionary.KnownPrimitive(primitiveCode) {
		logger.Warn("south-bound: unknown datagram primitive", "code", primitiveCode)
		return
	}

	switch primitiveCode {
	case dictionary.MIHLinkDetectedInd:
		d.handleDetected(body)
	case dictionary.MIHLinkUpInd, dictionary.MIHLinkDownInd, dictionary.MIHLinkGoingDownInd, dictionary.MIHLinkParametersReportInd:
		// Indications share the same wire shape regardless of transport;
		// route through the stream dispatcher's handlers directly since
		// none of these expect a confirm.
		d.dispatcher.HandleStream(&ConnState{}, primitiveCode, body)
	default:
		logger.Debug("south-bound: datagram primitive has no handler", "primitive", dictionary.PrimitiveName(primitiveCode))
	}
}

func (d *DatagramTransport) handleDetected(body []byte) {
	ind, err := mihwire.DecodeLinkDetectedIndication(body)
	if err != nil {
		logger.Warn("south-bound: Link_Detected.indication decode failed", "error", err.Error())
		return
	}
	d.dispatcher.links.Detected(ind.LinkIdentifier.LinkAddr, dictionary.LinkType(ind.LinkIdentifier.LinkType))
}

// Close stops the datagram listener.
func (d *DatagramTransport) Close() error {
	close(d.stopCh)
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
