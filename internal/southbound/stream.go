package southbound

import (
	"io"
	"net"
	"sync"

	"github.com/arinc839/cmcore/internal/logger"
	"github.com/arinc839/cmcore/internal/wire/mihwire"
)

// StreamTransport serves the Unix SOCK_STREAM MIH transport: one
// long-lived connection per DLM process, framed with mihwire's 12-byte
// stream header. Goroutine-per-connection, same shape as
// northbound.Transport and the teacher's capture.Engine worker pool.
type StreamTransport struct {
	socketPath string
	dispatcher *Dispatcher

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
}

// NewStreamTransport builds a StreamTransport bound to a Unix domain socket path.
func NewStreamTransport(socketPath string, dispatcher *Dispatcher) *StreamTransport {
	return &StreamTransport{socketPath: socketPath, dispatcher: dispatcher, conns: make(map[net.Conn]struct{})}
}

// ListenAndServe opens the Unix socket and runs the accept loop until Close.
func (s *StreamTransport) ListenAndServe() error {
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Info("south-bound stream transport listening", "socket", s.socketPath)
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.listener == nil
			s.mu.Unlock()
			if closed {
				return nil
			}
			logger.Warn("south-bound stream accept error", "error", err.Error())
			return err
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.serveConn(conn)
	}
}

// Close stops accepting and closes every open connection.
func (s *StreamTransport) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	return nil
}

func (s *StreamTransport) serveConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	connState := &ConnState{}
	header := make([]byte, mihwire.StreamHeaderLen)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				logger.Debug("south-bound stream read error", "error", err.Error())
			}
			return
		}
		hdr, err := mihwire.DecodeStreamHeader(header)
		if err != nil {
			logger.Warn("south-bound: stream header decode failed", "error", err.Error())
			return
		}
		if int(hdr.Length) < mihwire.StreamHeaderLen {
			logger.Warn("south-bound: invalid stream message length", "length", hdr.Length)
			return
		}
		bodyLen := int(hdr.Length) - mihwire.StreamHeaderLen
		body := make([]byte, bodyLen)
		if bodyLen > 0 {
			if _, err := io.ReadFull(conn, body); err != nil {
				logger.Debug("south-bound stream body read error", "error", err.Error())
				return
			}
		}

		reply := s.dispatcher.HandleStream(connState, hdr.PrimitiveCode, body)
		if reply == nil {
			continue
		}

		replyHeader := mihwire.EncodeStreamHeader(mihwire.StreamHeader{
			PrimitiveCode: confirmCodeFor(hdr.PrimitiveCode),
			Length:        uint16(mihwire.StreamHeaderLen + len(reply)),
			TransactionID: hdr.TransactionID,
			Timestamp:     hdr.Timestamp,
		})
		out := append(replyHeader, reply...)
		if _, err := conn.Write(out); err != nil {
			logger.Warn("south-bound: stream reply write failed", "error", err.Error())
			return
		}
	}
}

// confirmCodeFor maps a request/indication primitive code to the code its
// reply is sent under. Requests are even-numbered confirms one above their
// request in this dictionary's numbering (§6); indications that get a
// protocol-level ack (heartbeat) reuse the ack's own constant.
func confirmCodeFor(reqCode uint16) uint16 {
	switch reqCode {
	case 0x8101:
		return 0x8102 // Ext_Link_Register.request -> .confirm
	case 0x0301:
		return 0x0302 // Link_Resource.request -> .confirm
	case 0x8F01:
		return 0x8F02 // Ext_Heartbeat -> Ext_Heartbeat_Ack
	default:
		return reqCode + 1
	}
}
