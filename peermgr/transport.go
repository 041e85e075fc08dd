package peermgr

import (
	"bufio"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/wire"
)

// maxEnvelopeBytes bounds a single inbound frame, guarding against a peer
// streaming an unbounded message.
const maxEnvelopeBytes = 4 << 20

// Conn is the minimal interface both transports implement: read one
// envelope (blocking), write one envelope, and close.
type Conn interface {
	ReadEnvelope() (*wire.Envelope, error)
	WriteEnvelope(env *wire.Envelope) error
	RemoteAddr() string
	Close() error
}

// tcpConn frames envelopes as newline-delimited JSON over a raw TCP
// connection — the simplest transport, used for peer-to-peer links that
// don't need an HTTP upgrade handshake.
type tcpConn struct {
	conn net.Conn
	r    *bufio.Reader

	writeMu sync.Mutex
}

// DialTCP connects to a peer's TCP address.
func DialTCP(address string, timeout time.Duration) (Conn, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, errors.Wrap(err, "peermgr: dialing peer")
	}
	return &tcpConn{conn: conn, r: bufio.NewReaderSize(conn, maxEnvelopeBytes)}, nil
}

func newTCPConn(conn net.Conn) Conn {
	return &tcpConn{conn: conn, r: bufio.NewReaderSize(conn, maxEnvelopeBytes)}
}

func (c *tcpConn) ReadEnvelope() (*wire.Envelope, error) {
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return nil, errors.Wrap(err, "peermgr: reading envelope")
	}
	env, trailing, err := wire.UnmarshalEnvelope(line)
	if err != nil {
		return nil, err
	}
	_ = trailing // bytes after the first envelope are dropped here, unlogged and not returned to the caller
	return env, nil
}

func (c *tcpConn) WriteEnvelope(env *wire.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	payload, err := wire.MarshalEnvelope(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = c.conn.Write(payload)
	return errors.Wrap(err, "peermgr: writing envelope")
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

// TCPListener accepts incoming peer connections on a TCP address.
type TCPListener struct {
	ln net.Listener
}

// ListenTCP starts listening for peer connections on address.
func ListenTCP(address string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "peermgr: listening for peers")
	}
	return &TCPListener{ln: ln}, nil
}

// Accept blocks until a peer connects, then returns the wrapped connection.
func (l *TCPListener) Accept() (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return newTCPConn(conn), nil
}

// Close stops accepting new connections.
func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// wsConn adapts a gorilla/websocket connection to Conn, for peers that sit
// behind infrastructure only willing to proxy HTTP/WebSocket traffic.
type wsConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// UpgradeWebSocket upgrades an inbound HTTP request to a WebSocket peer
// connection.
func UpgradeWebSocket(w http.ResponseWriter, r *http.Request) (Conn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "peermgr: upgrading websocket")
	}
	conn.SetReadLimit(maxEnvelopeBytes)
	return &wsConn{conn: conn}, nil
}

// DialWebSocket connects to a peer exposing a WebSocket endpoint.
func DialWebSocket(url string, timeout time.Duration) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "peermgr: dialing websocket peer")
	}
	conn.SetReadLimit(maxEnvelopeBytes)
	return &wsConn{conn: conn}, nil
}

func (c *wsConn) ReadEnvelope() (*wire.Envelope, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "peermgr: reading websocket frame")
	}
	env, trailing, err := wire.UnmarshalEnvelope(data)
	if err != nil {
		return nil, err
	}
	_ = trailing
	return env, nil
}

func (c *wsConn) WriteEnvelope(env *wire.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	payload, err := wire.MarshalEnvelope(env)
	if err != nil {
		return err
	}
	return errors.Wrap(c.conn.WriteMessage(websocket.TextMessage, payload), "peermgr: writing websocket frame")
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
