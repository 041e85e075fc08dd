// Package crypto wraps secp256k1 key generation, signing, and verification
// for both transaction signatures and peer-to-peer envelope signatures.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/util"
)

const pemBlockType = "XAI NODE SIGNING KEY"

// PrivateKey is a node's or wallet's secp256k1 signing key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey is the compressed public key corresponding to a PrivateKey.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GeneratePrivateKey creates a new random signing key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate private key")
	}
	return &PrivateKey{key: key}, nil
}

// PubKey returns the public key for this private key.
func (p *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// Sign produces a deterministic ECDSA signature over hash.
func (p *PrivateKey) Sign(hash [32]byte) *Signature {
	sig := ecdsa.Sign(p.key, hash[:])
	return &Signature{sig: sig}
}

// SerializeCompressed returns the 33-byte compressed public key encoding.
func (pk *PublicKey) SerializeCompressed() []byte {
	return pk.key.SerializeCompressed()
}

// Fingerprint returns the hex-encoded compressed public key, used as the
// sender identity in the envelope protocol.
func (pk *PublicKey) Fingerprint() string {
	return hex.EncodeToString(pk.SerializeCompressed())
}

// ParsePublicKey decodes a compressed public key from bytes.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}
	return &PublicKey{key: key}, nil
}

// ParsePublicKeyHex decodes a compressed public key from its hex fingerprint.
func ParsePublicKeyHex(fingerprint string) (*PublicKey, error) {
	b, err := hex.DecodeString(fingerprint)
	if err != nil {
		return nil, errors.Wrap(err, "decode fingerprint")
	}
	return ParsePublicKey(b)
}

// Address derives the base58check address owning this public key.
func (pk *PublicKey) Address(version util.AddressVersion) *util.Address {
	return util.NewAddressFromPublicKey(pk.SerializeCompressed(), version)
}

// Signature is a secp256k1 ECDSA signature.
type Signature struct {
	sig *ecdsa.Signature
}

// Verify checks that sig is a valid signature over hash by pubKey.
func (s *Signature) Verify(hash [32]byte, pubKey *PublicKey) bool {
	return s.sig.Verify(hash[:], pubKey.key)
}

// Serialize returns the DER-encoded signature.
func (s *Signature) Serialize() []byte {
	return s.sig.Serialize()
}

// ParseSignature decodes a DER-encoded signature.
func ParseSignature(b []byte) (*Signature, error) {
	sig, err := ecdsa.ParseDERSignature(b)
	if err != nil {
		return nil, errors.Wrap(err, "parse signature")
	}
	return &Signature{sig: sig}, nil
}

// LoadOrCreatePrivateKey reads the PEM-encoded signing key at path, or
// generates and persists a new one with 0600 permissions if none exists.
// This backs the node's persistent per-node identity, keys/signing_key.pem.
func LoadOrCreatePrivateKey(path string) (*PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		block, _ := pem.Decode(raw)
		if block == nil || block.Type != pemBlockType {
			return nil, errors.Errorf("%s does not contain a valid signing key", path)
		}
		key := secp256k1.PrivKeyFromBytes(block.Bytes)
		return &PrivateKey{key: key}, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read signing key")
	}

	priv, genErr := GeneratePrivateKey()
	if genErr != nil {
		return nil, genErr
	}
	if err := savePrivateKey(path, priv); err != nil {
		return nil, err
	}
	return priv, nil
}

func savePrivateKey(path string, priv *PrivateKey) error {
	block := &pem.Block{
		Type:  pemBlockType,
		Bytes: priv.key.Serialize(),
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "create signing key file")
	}
	defer f.Close()
	if err := pem.Encode(f, block); err != nil {
		return errors.Wrap(err, "write signing key")
	}
	return nil
}

// RandomNonce returns 16 cryptographically random bytes, used as the
// envelope nonce.
func RandomNonce() ([16]byte, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, errors.Wrap(err, "generate nonce")
	}
	return nonce, nil
}
