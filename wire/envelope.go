package wire

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/util"
)

// MessageKind tags the payload carried inside an envelope. It is a
// discriminated union over the wire protocol's message kinds. The compiler
// does not check switches over MessageKind for exhaustiveness: a kind with
// no case of its own falls to the switch's default (relay ignores it).
type MessageKind string

// The message kinds the wire protocol defines, verbatim per spec section 6.
const (
	KindHello       MessageKind = "hello"
	KindTx          MessageKind = "tx"
	KindBlock       MessageKind = "block"
	KindGetHeaders  MessageKind = "get_headers"
	KindHeaders     MessageKind = "headers"
	KindGetBlock    MessageKind = "get_block"
	KindPing        MessageKind = "ping"
	KindPong        MessageKind = "pong"
)

// Payload is the inner content of an envelope, tagged by Kind so the
// receiver can dispatch without runtime type assertions beyond one switch.
type Payload struct {
	Kind        MessageKind  `json:"kind"`
	Hello       *HelloPayload       `json:"hello,omitempty"`
	Tx          *Transaction        `json:"tx,omitempty"`
	Block       *Block              `json:"block,omitempty"`
	GetHeaders  *GetHeadersPayload  `json:"get_headers,omitempty"`
	Headers     *HeadersPayload     `json:"headers,omitempty"`
	GetBlock    *GetBlockPayload    `json:"get_block,omitempty"`
	Ping        *PingPayload        `json:"ping,omitempty"`
	Pong        *PongPayload        `json:"pong,omitempty"`
}

// HelloPayload announces identity, protocol version, and chain tip during
// the handshake.
type HelloPayload struct {
	ProtocolVersion uint32    `json:"protocol_version"`
	UserAgent       string    `json:"user_agent"`
	TipHeight       uint64    `json:"tip_height"`
	TipWork         string    `json:"tip_work"` // decimal cumulative work, too large for a JSON number
	TipHash         BlockHash `json:"tip_hash"`
	ListenAddr      string    `json:"listen_addr,omitempty"`
}

// GetHeadersPayload requests headers starting after StartHash, up to Limit.
type GetHeadersPayload struct {
	StartHash BlockHash `json:"start_hash"`
	Limit     uint32    `json:"limit"`
	RequestID string    `json:"request_id"`
}

// HeadersPayload is the response to GetHeadersPayload.
type HeadersPayload struct {
	Headers   []*BlockHeader `json:"headers"`
	RequestID string         `json:"request_id"`
}

// GetBlockPayload requests a single full block by hash.
type GetBlockPayload struct {
	Hash      BlockHash `json:"hash"`
	RequestID string    `json:"request_id"`
}

// PingPayload/PongPayload carry a nonce for liveness checks.
type PingPayload struct {
	Nonce uint64 `json:"nonce"`
}
type PongPayload struct {
	Nonce uint64 `json:"nonce"`
}

// Message is the inner, signed part of an envelope.
type Message struct {
	Payload   Payload `json:"payload"`
	Timestamp int64   `json:"timestamp"`
	Nonce     string  `json:"nonce"`
	SenderID  string  `json:"sender_id"`
}

// Envelope is the two-field outer wrapper around every peer-to-peer
// message: the signed message plus its signature.
type Envelope struct {
	Message   Message `json:"message"`
	Signature string  `json:"signature"`
}

// CanonicalMessageBytes returns the canonical byte string signed over the
// message: a JSON-style encoding with keys sorted lexicographically at
// every depth and no whitespace between tokens.
func (m *Message) CanonicalMessageBytes() ([]byte, error) {
	return util.CanonicalJSON(m)
}

// EncodeSignature joins a compressed public key and a DER signature into the
// envelope's "pubkey_hex.sig_hex" signature field.
func EncodeSignature(pubKeyHex string, sigDER []byte) string {
	return pubKeyHex + "." + hex.EncodeToString(sigDER)
}

// DecodeSignature splits an envelope signature field back into its public
// key hex and signature bytes.
func DecodeSignature(sig string) (pubKeyHex string, sigDER []byte, err error) {
	parts := strings.SplitN(sig, ".", 2)
	if len(parts) != 2 {
		return "", nil, errors.New("malformed signature: expected pubkey_hex.sig_hex")
	}
	sigDER, err = hex.DecodeString(parts[1])
	if err != nil {
		return "", nil, errors.Wrap(err, "decode signature hex")
	}
	return parts[0], sigDER, nil
}

// NewNonce returns the 32-hex-character encoding of 16 random bytes used as
// the envelope nonce.
func NewNonce(raw [16]byte) string {
	return hex.EncodeToString(raw[:])
}

// MarshalEnvelope serializes an envelope to wire bytes. This is the
// over-the-wire encoding, distinct from CanonicalMessageBytes which is only
// used for the signature.
func MarshalEnvelope(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// UnmarshalEnvelope decodes wire bytes into an Envelope. Per the receiver
// recovery rule, if the first balanced JSON object in buf ends before the
// end of the buffer, the remainder is not treated as an error: it is
// returned, whitespace-trimmed, as trailing, and logging it is left to the
// caller.
func UnmarshalEnvelope(buf []byte) (env *Envelope, trailing []byte, err error) {
	dec := json.NewDecoder(bytes.NewReader(buf))
	env = &Envelope{}
	if err := dec.Decode(env); err != nil {
		return nil, nil, errors.Wrap(err, "decode envelope")
	}
	rest := buf[dec.InputOffset():]
	trimmed := bytes.TrimSpace(rest)
	return env, trimmed, nil
}

// WireTimeout is the recency window allowed between an envelope's embedded
// timestamp and the verifier's wall clock.
const WireTimeout = 300 * time.Second
