package persist

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/wire"
)

// logEntry is one line of the append-only block log.
type logEntry struct {
	Height uint64      `json:"height"`
	Block  *wire.Block `json:"block"`
}

// BlockLog is an append-only, newline-delimited JSON log of the blocks
// connected to the main chain, trimmed by the Checkpointer to those after
// the oldest retained snapshot backup. On recovery, if the
// most recent snapshot is missing or corrupt, the node replays this log on
// top of the snapshot before it to rebuild the UTXO set without needing to
// re-download or re-validate blocks from the network.
type BlockLog struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// OpenBlockLog opens (creating if necessary) the block log file at path for
// appending.
func OpenBlockLog(path string) (*BlockLog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "persist: opening block log")
	}
	return &BlockLog{path: path, f: f}, nil
}

// Append records a connected block at height, fsyncing so the entry
// survives a crash immediately after the call returns.
func (l *BlockLog) Append(height uint64, block *wire.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	payload, err := json.Marshal(logEntry{Height: height, Block: block})
	if err != nil {
		return errors.Wrap(err, "persist: encoding block log entry")
	}
	if _, err := l.f.Write(append(payload, '\n')); err != nil {
		return errors.Wrap(err, "persist: appending block log entry")
	}
	return l.f.Sync()
}

// Truncate discards every entry at or below upToHeight, called after a
// snapshot has been taken and those entries are no longer needed for replay.
// It rewrites the log to a temp file and renames it into place, the same
// atomic-replace pattern Store.Save uses.
func (l *BlockLog) Truncate(upToHeight uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAllLocked()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Height > upToHeight {
			kept = append(kept, e)
		}
	}

	tmpPath := l.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrap(err, "persist: opening temp block log")
	}
	w := bufio.NewWriter(f)
	for _, e := range kept {
		payload, err := json.Marshal(e)
		if err != nil {
			f.Close()
			return errors.Wrap(err, "persist: re-encoding block log entry")
		}
		if _, err := w.Write(append(payload, '\n')); err != nil {
			f.Close()
			return errors.Wrap(err, "persist: rewriting block log")
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, "persist: flushing block log")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "persist: fsyncing block log")
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := l.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return errors.Wrap(err, "persist: renaming block log into place")
	}
	l.f, err = os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	return err
}

// ReplaySince returns every logged block with height strictly greater than
// fromHeight, in ascending height order, for checkpoint-replay recovery.
func (l *BlockLog) ReplaySince(fromHeight uint64) ([]*wire.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAllLocked()
	if err != nil {
		return nil, err
	}
	var blocks []*wire.Block
	for _, e := range entries {
		if e.Height > fromHeight {
			blocks = append(blocks, e.Block)
		}
	}
	return blocks, nil
}

func (l *BlockLog) readAllLocked() ([]logEntry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "persist: opening block log for read")
	}
	defer f.Close()

	var entries []logEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e logEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, errors.Wrap(err, "persist: decoding block log entry")
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "persist: scanning block log")
	}
	return entries, nil
}

// Close closes the underlying log file.
func (l *BlockLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
