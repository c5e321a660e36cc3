package main

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const memoSnapshotVersion = 1

type memoSnapshot struct {
	Version int
	Records []memoRecord
}

type memoRecord struct {
	Hash  uint64
	Entry memoEntry
}

// loadWarmMemo restores the warm memo from disk. Any failure leaves an empty
// warm layer behind.
func loadWarmMemo(cfg Config) int {
	if !cfg.AiPersistCaches || cfg.AiMemoPersistPath == "" {
		cacheLog.Info().Msg("memo persistence disabled")
		return 0
	}
	path := resolveCachePath(cfg.AiMemoPersistPath)
	entries, err := readMemoSnapshot(path, cfg.AiWarmMaxEntries)
	if err != nil {
		cacheLog.Warn().Err(err).Str("path", path).Msg("memo snapshot unreadable; starting empty")
		warmMemo.Clear()
		return 0
	}
	warmMemo.Replace(entries)
	cacheLog.Info().Str("path", path).Int("entries", len(entries)).Msg("restored memo snapshot")
	return len(entries)
}

func persistWarmMemo(cfg Config) error {
	if !cfg.AiPersistCaches || cfg.AiMemoPersistPath == "" {
		return nil
	}
	path := resolveCachePath(cfg.AiMemoPersistPath)
	entries := warmMemo.snapshot()
	if err := writeMemoSnapshot(path, entries); err != nil {
		return fmt.Errorf("persist memo %s: %w", path, err)
	}
	cacheLog.Info().Str("path", path).Int("entries", len(entries)).Msg("stored memo snapshot")
	return nil
}

// readMemoSnapshot decodes a snapshot file. A missing file is an empty memo.
// Records whose cells do not hash to their key are dropped.
func readMemoSnapshot(path string, limit int) (map[uint64]*memoEntry, error) {
	entries := make(map[uint64]*memoEntry)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, err
	}
	defer file.Close()

	var snapshot memoSnapshot
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated snapshot: %w", err)
		}
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snapshot.Version != memoSnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, memoSnapshotVersion)
	}
	rejected := 0
	for i := range snapshot.Records {
		rec := &snapshot.Records[i]
		if limit > 0 && len(entries) >= limit {
			break
		}
		if ComputeFingerprint(&rec.Entry.Cells) != rec.Hash {
			rejected++
			continue
		}
		entries[rec.Hash] = &rec.Entry
	}
	if rejected > 0 {
		cacheLog.Warn().Int("rejected", rejected).Str("path", path).Msg("dropped memo records with mismatched hashes")
	}
	return entries, nil
}

// writeMemoSnapshot encodes to a temp file and renames it over path.
func writeMemoSnapshot(path string, entries map[uint64]*memoEntry) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	snapshot := memoSnapshot{Version: memoSnapshotVersion, Records: make([]memoRecord, 0, len(entries))}
	for hash, entry := range entries {
		snapshot.Records = append(snapshot.Records, memoRecord{Hash: hash, Entry: *entry})
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(tmp).Encode(&snapshot); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
