package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/wire"
)

func sampleSnapshot() *Snapshot {
	utxo := ledger.NewUTXOSetFromEntries(map[wire.Outpoint]ledger.UTXOEntry{
		{TxID: wire.TxID{1}, Index: 0}: {Address: "addr1", Amount: 500, BlockHeight: 1, IsCoinbase: true},
	})
	return NewSnapshot(1, wire.BlockHash{2}, wire.BlockHeader{Height: 1}, "12345", utxo)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 3)
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleSnapshot()))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(1), loaded.Height)
	require.Equal(t, "12345", loaded.CumulativeWork)
	require.Len(t, loaded.Entries, 1)
	require.Equal(t, uint64(500), loaded.Entries[0].Entry.Amount)
}

func TestStoreLoadFallsBackToBackupOnCorruption(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 3)
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleSnapshot()))

	second := sampleSnapshot()
	second.Height = 2
	require.NoError(t, store.Save(second))

	// Corrupt the primary snapshot in place.
	require.NoError(t, os.WriteFile(store.path(), []byte("not valid json or a checksum"), 0o600))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(1), loaded.Height, "expected fallback to the height-1 backup")
}

func TestStoreLoadReturnsErrNoValidSnapshotWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 3)
	require.NoError(t, err)
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoValidSnapshot)
}

func TestStorePrunesBackupsBeyondMax(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 2)
	require.NoError(t, err)
	for height := uint64(1); height <= 4; height++ {
		s := sampleSnapshot()
		s.Height = height
		require.NoError(t, store.Save(s))
	}
	require.Len(t, store.backupSerialsLocked(), 2)
}

func TestBlockLogAppendReplayAndTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.log")
	log, err := OpenBlockLog(path)
	require.NoError(t, err)
	defer log.Close()

	for height := uint64(1); height <= 3; height++ {
		block := &wire.Block{Header: wire.BlockHeader{Height: height}}
		require.NoError(t, log.Append(height, block))
	}

	replayed, err := log.ReplaySince(1)
	require.NoError(t, err)
	require.Len(t, replayed, 2)

	require.NoError(t, log.Truncate(2))
	replayed, err = log.ReplaySince(0)
	require.NoError(t, err)
	require.Len(t, replayed, 1)
	require.Equal(t, uint64(3), replayed[0].Header.Height)
}

func TestRecoverReplaysSinceLastSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 3)
	require.NoError(t, err)
	log, err := OpenBlockLog(filepath.Join(dir, "blocks.log"))
	require.NoError(t, err)
	defer log.Close()

	checkpointer := NewCheckpointer(store, log, 2)
	utxo := ledger.NewUTXOSet()
	for height := uint64(1); height <= 3; height++ {
		block := &wire.Block{Header: wire.BlockHeader{Height: height}}
		require.NoError(t, checkpointer.OnConnect(height, wire.BlockHash{byte(height)}, "1", block, utxo))
	}

	snapshot, replay, err := Recover(store, log)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.Equal(t, uint64(2), snapshot.Height)
	require.Len(t, replay, 1)
	require.Equal(t, uint64(3), replay[0].Header.Height)
}

func TestHeaderIndexPutGetAndAll(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenHeaderIndex(filepath.Join(dir, "headers"))
	require.NoError(t, err)
	defer idx.Close()

	hash := wire.BlockHash{7}
	header := wire.BlockHeader{Height: 5, Bits: 0x1d00ffff}
	require.NoError(t, idx.Put(hash, &header))

	has, err := idx.Has(hash)
	require.NoError(t, err)
	require.True(t, has)

	got, err := idx.Get(hash)
	require.NoError(t, err)
	require.Equal(t, header, *got)

	records, err := idx.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, hash, records[0].Hash)
}
