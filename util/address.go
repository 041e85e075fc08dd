package util

import (
	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/util/base58"
)

// AddressVersion identifies which network an address was encoded for. It
// plays the same role as btcd's net-specific address ID byte.
type AddressVersion byte

// Address is a base58check-encoded ripemd160(sha256(pubkey)) hash, the only
// address form the node's ledger understands (no P2SH, no scripts).
type Address struct {
	hash    [20]byte
	version AddressVersion
}

// NewAddressFromPublicKey derives the address that owns the given compressed
// secp256k1 public key.
func NewAddressFromPublicKey(pubKey []byte, version AddressVersion) *Address {
	var hash [20]byte
	copy(hash[:], Hash160(pubKey))
	return &Address{hash: hash, version: version}
}

// Hash160 returns the 20-byte pubkey hash backing this address.
func (a *Address) Hash160() [20]byte {
	return a.hash
}

// Encode returns the base58check string form of the address.
func (a *Address) Encode() string {
	return base58.CheckEncode(a.hash[:], byte(a.version))
}

// String implements fmt.Stringer.
func (a *Address) String() string {
	return a.Encode()
}

// DecodeAddress parses a base58check-encoded address string for the given
// expected network version.
func DecodeAddress(encoded string, expectedVersion AddressVersion) (*Address, error) {
	payload, version, err := base58.CheckDecode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decode address")
	}
	if version != byte(expectedVersion) {
		return nil, errors.Errorf("address %s is not valid for this network (version %d, want %d)",
			encoded, version, expectedVersion)
	}
	if len(payload) != 20 {
		return nil, errors.Errorf("address %s has invalid payload length %d", encoded, len(payload))
	}
	addr := &Address{version: version}
	copy(addr.hash[:], payload)
	return addr, nil
}
