// Package peermgr manages the node's peer sessions: handshake lifecycle,
// envelope signing and verification, per-peer and aggregate rate limiting,
// duplicate-message suppression, and the TCP/WebSocket transport peers talk
// over.
package peermgr

import (
	"time"

	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/crypto"
	"github.com/xai-blockchain/xai-sub002/util"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// Sign wraps payload in a fully populated, signed Envelope: it stamps the
// current time, draws a fresh nonce, and signs the message's canonical
// bytes with priv.
func Sign(payload wire.Payload, priv *crypto.PrivateKey, now time.Time) (*wire.Envelope, error) {
	nonceBytes, err := crypto.RandomNonce()
	if err != nil {
		return nil, err
	}
	msg := wire.Message{
		Payload:   payload,
		Timestamp: now.Unix(),
		Nonce:     wire.NewNonce(nonceBytes),
		SenderID:  priv.PubKey().Fingerprint(),
	}
	canonical, err := msg.CanonicalMessageBytes()
	if err != nil {
		return nil, errors.Wrap(err, "peermgr: canonicalizing message")
	}
	hash := util.Hash256(canonical)
	sig := priv.Sign(hash)
	return &wire.Envelope{
		Message:   msg,
		Signature: wire.EncodeSignature(priv.PubKey().Fingerprint(), sig.Serialize()),
	}, nil
}

// Verify checks an incoming envelope's signature and freshness: the
// signature must be a valid secp256k1 signature by the sender fingerprint
// over the message's canonical bytes, and the message's timestamp must fall
// within wire.WireTimeout of now in either direction.
func Verify(env *wire.Envelope, now time.Time) error {
	pubKeyHex, sigDER, err := wire.DecodeSignature(env.Signature)
	if err != nil {
		return err
	}
	if pubKeyHex != env.Message.SenderID {
		return errors.New("peermgr: signature public key does not match sender_id")
	}
	pubKey, err := crypto.ParsePublicKeyHex(pubKeyHex)
	if err != nil {
		return err
	}
	sig, err := crypto.ParseSignature(sigDER)
	if err != nil {
		return err
	}
	canonical, err := env.Message.CanonicalMessageBytes()
	if err != nil {
		return errors.Wrap(err, "peermgr: canonicalizing message")
	}
	if !sig.Verify(util.Hash256(canonical), pubKey) {
		return errors.New("peermgr: signature verification failed")
	}

	msgTime := time.Unix(env.Message.Timestamp, 0)
	skew := now.Sub(msgTime)
	if skew < 0 {
		skew = -skew
	}
	if skew > wire.WireTimeout {
		return errors.Errorf("peermgr: message timestamp %s is outside the %s tolerance", msgTime, wire.WireTimeout)
	}
	return nil
}
