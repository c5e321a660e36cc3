package main

import (
	"encoding/binary"
	"sync"

	"lukechampine.com/frand"
)

// ZobristTable holds one key per (cell, colour) for a board size. Keys come
// from a fixed-seed stream so fingerprints stay stable across restarts and
// persisted memo snapshots remain valid.
type ZobristTable struct {
	size  int
	cells []uint64
}

var (
	zobristMu     sync.Mutex
	zobristBySize = map[int]*ZobristTable{}
)

var boardZobrist = GetZobrist(BoardSize)

func GetZobrist(size int) *ZobristTable {
	zobristMu.Lock()
	defer zobristMu.Unlock()
	if table, ok := zobristBySize[size]; ok {
		return table
	}

	var seed [32]byte
	copy(seed[:], "gomoku-zobrist")
	binary.LittleEndian.PutUint64(seed[24:], uint64(size))
	raw := make([]byte, size*size*2*8)
	frand.NewCustom(seed[:], 1024, 12).Read(raw)

	table := &ZobristTable{size: size, cells: make([]uint64, size*size*2)}
	for i := range table.cells {
		table.cells[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	zobristBySize[size] = table
	return table
}

// stone returns the key of a stone; empty cells contribute nothing.
func (z *ZobristTable) stone(idx int, cell Cell) uint64 {
	switch cell {
	case CellBlack:
		return z.cells[idx*2]
	case CellWhite:
		return z.cells[idx*2+1]
	}
	return 0
}

// ComputeFingerprint hashes the full cell contents from scratch.
func ComputeFingerprint(cells *[boardCells]Cell) uint64 {
	var h uint64
	for idx, cell := range cells {
		h ^= boardZobrist.stone(idx, cell)
	}
	return h
}
