package persist

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/xai-blockchain/xai-sub002/wire"
)

// HeaderIndex is an optional goleveldb-backed store of every known block
// header, keyed by hash. It exists so a node can answer a peer's header-
// first catch-up request (see the relay package) without holding every
// header in memory indefinitely, and so restarting doesn't lose headers for
// side chains that never became the main chain (the snapshot only covers
// the main chain's UTXO effects).
type HeaderIndex struct {
	db *leveldb.DB
}

// OpenHeaderIndex opens (creating if necessary) a goleveldb database at
// path to back the header index.
func OpenHeaderIndex(path string) (*HeaderIndex, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "persist: opening header index")
	}
	return &HeaderIndex{db: db}, nil
}

// Put stores header under hash.
func (idx *HeaderIndex) Put(hash wire.BlockHash, header *wire.BlockHeader) error {
	payload, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "persist: encoding header")
	}
	return idx.db.Put(hash[:], payload, nil)
}

// Get looks up the header stored under hash.
func (idx *HeaderIndex) Get(hash wire.BlockHash) (*wire.BlockHeader, error) {
	payload, err := idx.db.Get(hash[:], nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "persist: reading header")
	}
	var header wire.BlockHeader
	if err := json.Unmarshal(payload, &header); err != nil {
		return nil, errors.Wrap(err, "persist: decoding header")
	}
	return &header, nil
}

// Has reports whether hash has an indexed header.
func (idx *HeaderIndex) Has(hash wire.BlockHash) (bool, error) {
	return idx.db.Has(hash[:], nil)
}

// HeaderRecord pairs a stored header with the hash it was indexed under.
type HeaderRecord struct {
	Hash   wire.BlockHash
	Header wire.BlockHeader
}

// All returns every header in the index, in no particular order. The
// caller is expected to sort by height before feeding them to
// fork.Manager.SeedHeader, which requires ascending order so each header's
// parent is already known.
func (idx *HeaderIndex) All() ([]HeaderRecord, error) {
	iter := idx.db.NewIterator(nil, nil)
	defer iter.Release()

	var records []HeaderRecord
	for iter.Next() {
		var hash wire.BlockHash
		copy(hash[:], iter.Key())
		var header wire.BlockHeader
		if err := json.Unmarshal(iter.Value(), &header); err != nil {
			return nil, errors.Wrap(err, "persist: decoding header")
		}
		records = append(records, HeaderRecord{Hash: hash, Header: header})
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "persist: iterating header index")
	}
	return records, nil
}

// Close closes the underlying database.
func (idx *HeaderIndex) Close() error {
	return idx.db.Close()
}
