package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/ValentinKolb/idemkv/rpc/transport"
)

// IServerConnector is the socket specific part of a server transport.
type IServerConnector interface {
	// Listen opens the listener for config.Endpoint
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection tunes an accepted connection (socket options etc.)
	UpgradeConnection(conn net.Conn) error

	// GetName names the transport in log lines
	GetName() string
}

type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	timeout    time.Duration
	workers    int
	buffers    sync.Pool
	closed     atomic.Bool
	listenerMu sync.Mutex
	listener   net.Listener
}

// NewBaseServerTransport creates a framed server transport. Every connection handles up to
// workersPerConn requests in parallel; answers may leave in a different order than the
// requests arrived, the client matches them by request id.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	t := &serverTransport{
		connector: connector,
		workers:   max(workersPerConn, 1),
	}
	t.buffers.New = func() any {
		return make([]byte, bufferSize)
	}
	return t
}

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.timeout = config.Timeout()

	ln, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	t.listenerMu.Lock()
	t.listener = ln
	t.listenerMu.Unlock()

	Logger.Infof("%s server listening on %s (%d workers per connection)", t.connector.GetName(), ln.Addr(), t.workers)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("accept: %v", err)
			continue
		}
		if err := t.connector.UpgradeConnection(conn); err != nil {
			Logger.Warningf("could not tune connection from %s: %v", conn.RemoteAddr(), err)
		}

		s := &session{transport: t, conn: conn, slots: make(chan struct{}, t.workers)}
		go s.serve()
	}
}

func (t *serverTransport) Close() error {
	t.closed.Store(true)

	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// session is one accepted connection.
type session struct {
	transport *serverTransport
	conn      net.Conn
	slots     chan struct{} // bounds the requests in flight
	inflight  sync.WaitGroup
	writeMu   sync.Mutex
}

// serve reads frames until the peer goes away, then waits for pending answers.
func (s *session) serve() {
	defer s.conn.Close()
	defer s.inflight.Wait()

	for {
		buf := s.transport.buffers.Get().([]byte)
		shardID, requestID, payload, err := readFrame(s.conn, buf)
		if err != nil {
			s.transport.buffers.Put(buf)
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				Logger.Debugf("%s disconnected", s.conn.RemoteAddr())
			} else {
				Logger.Errorf("reading from %s: %v", s.conn.RemoteAddr(), err)
			}
			return
		}

		s.slots <- struct{}{}
		s.inflight.Add(1)
		go func() {
			defer func() {
				s.transport.buffers.Put(buf)
				<-s.slots
				s.inflight.Done()
			}()
			s.answer(shardID, requestID, payload)
		}()
	}
}

func (s *session) answer(shardID, requestID uint64, payload []byte) {
	start := time.Now()
	resp := s.transport.handler(shardID, payload)
	Logger.Debugf("shard %d request %d handled in %s", shardID, requestID, time.Since(start))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.transport.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.transport.timeout)); err != nil {
			Logger.Errorf("set write deadline: %v", err)
			return
		}
	}
	if err := writeFrame(s.conn, shardID, requestID, resp); err != nil {
		Logger.Errorf("writing response for request %d: %v", requestID, err)
	}
}
