package main

import (
	"sync"
	"sync/atomic"
)

// scanRadius bounds how far along each line a single cell change is propagated.
const scanRadius = 6

type scoreTable [2][directionCount][boardCells]int32

// memoEntry is a whole-board memo record. Fields are exported for gob.
type memoEntry struct {
	Cells   [boardCells]Cell
	Table   scoreTable
	Scores  [2]int
	Weights [2]float64
	Set     [2]bool
}

type ScoreCacheStats struct {
	MemoHits    int64 `json:"memo_hits"`
	MemoMisses  int64 `json:"memo_misses"`
	TableReuses int64 `json:"table_reuses"`
	Recomputes  int64 `json:"recomputes"`
	Dropped     int64 `json:"dropped"`
}

func (s *ScoreCacheStats) add(other ScoreCacheStats) {
	s.MemoHits += other.MemoHits
	s.MemoMisses += other.MemoMisses
	s.TableReuses += other.TableReuses
	s.Recomputes += other.Recomputes
	s.Dropped += other.Dropped
}

// ScoreCache keeps the per-player, per-direction, per-cell pattern scores of
// one board in sync with its cells, plus a transient whole-board memo.
// It is owned by a single Board and is not safe for concurrent use.
type ScoreCache struct {
	table scoreTable
	memo  map[uint64]*memoEntry
	limit int
	stats ScoreCacheStats
}

func newScoreCache(limit int) *ScoreCache {
	return &ScoreCache{memo: make(map[uint64]*memoEntry), limit: limit}
}

func (sc *ScoreCache) rebuild(b *Board) {
	for idx := 0; idx < boardCells; idx++ {
		for dir := Direction(0); dir < directionCount; dir++ {
			sc.updateCell(b, idx/BoardSize, idx%BoardSize, dir)
		}
	}
}

func (sc *ScoreCache) updateCell(b *Board, row, col int, dir Direction) {
	idx := row*BoardSize + col
	cell := b.cells[idx]
	for p := PlayerBlack; p <= PlayerWhite; p++ {
		if cell != CellEmpty && cell != CellFromPlayer(p) {
			sc.table[p][dir][idx] = 0
			continue
		}
		sc.table[p][dir][idx] = int32(b.scoreCell(row, col, p, dir))
	}
}

// onCellChanged brings the table back in line with the board after (row, col)
// was written. A memoized position replaces the table wholesale.
func (sc *ScoreCache) onCellChanged(b *Board, row, col int) {
	if entry, _ := sc.lookup(b); entry != nil {
		sc.table = entry.Table
		sc.stats.TableReuses++
		return
	}
	sc.stats.Recomputes++
	for dir, step := range directionSteps {
		for i := -scanRadius; i <= scanRadius; i++ {
			r, c := row+i*step[0], col+i*step[1]
			if !b.InBounds(r, c) {
				continue
			}
			sc.updateCell(b, r, c, Direction(dir))
		}
	}
}

// lookup finds the memo entry for the board. Entries are keyed by fingerprint
// but only trusted when their cell snapshot matches, so collisions miss.
func (sc *ScoreCache) lookup(b *Board) (*memoEntry, bool) {
	if entry, ok := sc.memo[b.hash]; ok && entry.Cells == b.cells {
		return entry, false
	}
	if entry := warmMemo.get(b.hash); entry != nil && entry.Cells == b.cells {
		return entry, true
	}
	return nil, false
}

func (sc *ScoreCache) boardScore(b *Board, player PlayerColor, weight float64) int {
	entry, warm := sc.lookup(b)
	if entry != nil && entry.Set[player] && entry.Weights[player] == weight {
		sc.stats.MemoHits++
		return entry.Scores[player]
	}
	sc.stats.MemoMisses++
	score := sc.computeBoardScore(b, player, weight)
	if entry == nil || warm {
		if sc.limit <= 0 || len(sc.memo) >= sc.limit {
			sc.stats.Dropped++
			return score
		}
		fresh := &memoEntry{Cells: b.cells, Table: sc.table}
		if entry != nil {
			fresh.Scores, fresh.Weights, fresh.Set = entry.Scores, entry.Weights, entry.Set
		}
		sc.memo[b.hash] = fresh
		entry = fresh
	}
	entry.Scores[player] = score
	entry.Weights[player] = weight
	entry.Set[player] = true
	return score
}

func (sc *ScoreCache) computeBoardScore(b *Board, player PlayerColor, weight float64) int {
	own := CellFromPlayer(player)
	opp := otherPlayer(player)
	self, enemy := 0, 0
	for idx, cell := range b.cells {
		switch cell {
		case CellEmpty:
		case own:
			self += sc.cellTotal(player, idx)
		default:
			enemy += sc.cellTotal(opp, idx)
		}
	}
	return int(float64(self) - weight*float64(enemy))
}

func (sc *ScoreCache) cellTotal(player PlayerColor, idx int) int {
	total := 0
	for dir := 0; dir < directionCount; dir++ {
		total += int(sc.table[player][dir][idx])
	}
	return total
}

func (sc *ScoreCache) ClearTransient() {
	sc.memo = make(map[uint64]*memoEntry)
}

func (sc *ScoreCache) MemoLen() int {
	return len(sc.memo)
}

func (sc *ScoreCache) Snapshot() scoreTable {
	return sc.table
}

func (sc *ScoreCache) Stats() ScoreCacheStats {
	return sc.stats
}

func (sc *ScoreCache) clone() *ScoreCache {
	return &ScoreCache{table: sc.table, memo: make(map[uint64]*memoEntry), limit: sc.limit}
}

// warmMemoStore is the process-wide, read-mostly memo layer filled by warmup
// and persistence. Readers never lock; writers swap a fresh map.
type warmMemoStore struct {
	mu      sync.Mutex
	entries atomic.Pointer[map[uint64]*memoEntry]
}

var warmMemo = &warmMemoStore{}

func (w *warmMemoStore) get(hash uint64) *memoEntry {
	m := w.entries.Load()
	if m == nil {
		return nil
	}
	return (*m)[hash]
}

func (w *warmMemoStore) Len() int {
	m := w.entries.Load()
	if m == nil {
		return 0
	}
	return len(*m)
}

func (w *warmMemoStore) snapshot() map[uint64]*memoEntry {
	m := w.entries.Load()
	if m == nil {
		return map[uint64]*memoEntry{}
	}
	return *m
}

// Promote copies entries into the warm layer until limit is reached and
// returns how many were added. Existing positions are kept.
func (w *warmMemoStore) Promote(entries map[uint64]*memoEntry, limit int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	old := w.snapshot()
	next := make(map[uint64]*memoEntry, len(old)+len(entries))
	for hash, entry := range old {
		next[hash] = entry
	}
	added := 0
	for hash, entry := range entries {
		if limit > 0 && len(next) >= limit {
			break
		}
		if _, ok := next[hash]; ok {
			continue
		}
		copied := *entry
		next[hash] = &copied
		added++
	}
	w.entries.Store(&next)
	return added
}

func (w *warmMemoStore) Replace(entries map[uint64]*memoEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries.Store(&entries)
}

func (w *warmMemoStore) Clear() {
	w.Replace(map[uint64]*memoEntry{})
}
