package northbound

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/arinc839/cmcore/internal/dictionary"
	"github.com/arinc839/cmcore/internal/logger"
	"github.com/arinc839/cmcore/internal/wire/diameterwire"
)

// commandCodes maps the wire's numeric CommandCode back to the symbolic
// command name the dispatcher switches on. The codes are arbitrary and
// internal-only (see dictionary.go's comment on the north-bound command
// constants) — this table is the single place that assigns them.
var commandCodes = map[uint32]string{
	1: dictionary.CmdMCAR,
	2: dictionary.CmdMCAA,
	3: dictionary.CmdMCCR,
	4: dictionary.CmdMCCA,
	5: dictionary.CmdMNTR,
	6: dictionary.CmdMNTA,
	7: dictionary.CmdMSCR,
	8: dictionary.CmdMSCA,
}

var commandNumbers = func() map[string]uint32 {
	m := make(map[string]uint32, len(commandCodes))
	for n, name := range commandCodes {
		m[name] = n
	}
	return m
}()

// Transport listens for north-bound client connections and feeds each
// decoded message to a Dispatcher, the same goroutine-per-connection shape
// as the teacher's capture.Engine workers, adapted from file/PCAP ingestion
// to a long-lived TCP listen loop.
type Transport struct {
	addr       string
	dispatcher *Dispatcher

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}

	// sessionConn maps an authenticated session id to its connection, so a
	// server-initiated MNTR/MSCR push (triggered from the push engine, not
	// from a client request) can be written back without the dispatcher
	// itself needing to know about connections.
	sessionConn map[string]net.Conn
}

// NewTransport builds a Transport bound to addr (not yet listening).
// dispatcher may be nil at construction time — the push engine needs a
// Transport's MNTRSender before a Dispatcher can exist (the
// Dispatcher needs the push engine), so callers wire it in afterward with
// SetDispatcher, before calling ListenAndServe.
func NewTransport(addr string, dispatcher *Dispatcher) *Transport {
	return &Transport{
		addr:        addr,
		dispatcher:  dispatcher,
		conns:       make(map[net.Conn]struct{}),
		sessionConn: make(map[string]net.Conn),
	}
}

// SetDispatcher attaches the Dispatcher that decoded messages are handed
// to. Must be called before ListenAndServe if NewTransport was given nil.
func (t *Transport) SetDispatcher(dispatcher *Dispatcher) {
	t.dispatcher = dispatcher
}

// ListenAndServe opens the listener and runs the accept loop until Close is
// called, at which point the accept loop's Accept call fails and the
// goroutine returns. Mirrors the teacher's `go func() { a.server.ListenAndServe() }()`
// pattern in cmd/protei-monitoring/main.go Start — serve in a goroutine the
// caller launches, report errors through the returned error.
func (t *Transport) ListenAndServe() error {
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	logger.Info("north-bound transport listening", "addr", t.addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-closedSignal(t):
				return nil
			default:
				logger.Warn("north-bound accept error", "error", err.Error())
				return err
			}
		}
		t.mu.Lock()
		t.conns[conn] = struct{}{}
		t.mu.Unlock()
		go t.serveConn(conn)
	}
}

// closedSignal reports whether the listener has been shut down, used to
// distinguish a deliberate Close from a genuine accept error.
func closedSignal(t *Transport) <-chan struct{} {
	ch := make(chan struct{})
	t.mu.Lock()
	closed := t.listener == nil
	t.mu.Unlock()
	if closed {
		close(ch)
	}
	return ch
}

// Close stops accepting new connections and closes every connection currently open.
func (t *Transport) Close() error {
	t.mu.Lock()
	ln := t.listener
	t.listener = nil
	conns := make([]net.Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	return nil
}

func (t *Transport) serveConn(conn net.Conn) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, conn)
		for id, c := range t.sessionConn {
			if c == conn {
				delete(t.sessionConn, id)
			}
		}
		t.mu.Unlock()
		conn.Close()
	}()

	header := make([]byte, 20)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				logger.Debug("north-bound connection read error", "error", err.Error())
			}
			return
		}
		length := binary.BigEndian.Uint32(header[0:4]) & 0x00FFFFFF
		if length < 20 {
			logger.Warn("north-bound: invalid message length", "length", length)
			return
		}
		body := make([]byte, length-20)
		if _, err := io.ReadFull(conn, body); err != nil {
			logger.Debug("north-bound connection body read error", "error", err.Error())
			return
		}

		full := append(header, body...)
		msg, err := diameterwire.Decode(full)
		if err != nil {
			logger.Warn("north-bound: decode failed", "error", err.Error())
			continue
		}

		cmd, ok := commandCodes[msg.Header.CommandCode]
		if !ok {
			logger.Warn("north-bound: unknown command code", "code", msg.Header.CommandCode)
			continue
		}

		answer := t.dispatcher.Handle(cmd, msg)
		if answer.Header.CommandCode == 0 && len(answer.AVPs) == 0 {
			// MNTA/MSCA handling needs no answer of its own.
			continue
		}
		if sessID, ok := answer.FindString(dictionary.AVPSessionID); ok {
			t.mu.Lock()
			t.sessionConn[sessID] = conn
			t.mu.Unlock()
		}

		if _, err := conn.Write(diameterwire.Encode(answer)); err != nil {
			logger.Warn("north-bound: answer write failed", "error", err.Error())
			return
		}
	}
}

// sendTo writes an unsolicited message (MNTR/MSCR) to the connection
// currently bound to sessionID, if any is still open.
func (t *Transport) sendTo(sessionID string, msg diameterwire.Message) error {
	t.mu.Lock()
	conn, ok := t.sessionConn[sessionID]
	t.mu.Unlock()
	if !ok {
		return errNoConnection(sessionID)
	}
	_, err := conn.Write(diameterwire.Encode(msg))
	return err
}

type noConnectionError string

func (e noConnectionError) Error() string { return "northbound: no open connection for session " + string(e) }

func errNoConnection(sessionID string) error { return noConnectionError(sessionID) }
