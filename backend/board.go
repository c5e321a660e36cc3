package main

import (
	"fmt"
	"strings"
)

const (
	BoardSize  = 15
	boardCells = BoardSize * BoardSize
	winLength  = 5
)

type Cell int

const (
	CellEmpty Cell = iota
	CellBlack
	CellWhite
)

// Board is the 15x15 grid together with its turn, history and score cache.
// Place is the simulation path used by search; Play and UndoLast are the
// recorded path that moves the turn.
type Board struct {
	cells   [boardCells]Cell
	toMove  PlayerColor
	stones  int
	history MoveHistory
	hash    uint64
	scores  *ScoreCache
}

func NewBoard() *Board {
	b := &Board{}
	b.Reset()
	return b
}

// BoardFromMoves replays moves alternately starting with Black.
func BoardFromMoves(moves []Move) (*Board, error) {
	b := NewBoard()
	for _, m := range moves {
		if err := b.Play(m.Row, m.Col); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Board) Reset() {
	b.cells = [boardCells]Cell{}
	b.toMove = PlayerBlack
	b.stones = 0
	b.history.Clear()
	b.hash = 0
	b.scores = newScoreCache(GetConfig().AiMemoMaxEntries)
	b.scores.rebuild(b)
}

func (b *Board) At(row, col int) Cell {
	return b.cells[row*BoardSize+col]
}

func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < BoardSize && col < BoardSize
}

func (b *Board) IsEmpty(row, col int) bool {
	return b.InBounds(row, col) && b.At(row, col) == CellEmpty
}

func (b *Board) StoneCount() int {
	return b.stones
}

func (b *Board) ToMove() PlayerColor {
	return b.toMove
}

func (b *Board) Fingerprint() uint64 {
	return b.hash
}

func (b *Board) History() MoveHistory {
	return MoveHistory{entries: b.history.All()}
}

func (b *Board) Cells() [boardCells]Cell {
	return b.cells
}

func (b *Board) Scores() *ScoreCache {
	return b.scores
}

// Place writes cell at (row, col) without touching turn or history.
func (b *Board) Place(row, col int, cell Cell) error {
	if !b.InBounds(row, col) {
		return fmt.Errorf("place (%d,%d): %w", row, col, ErrOutOfRange)
	}
	if cell < CellEmpty || cell > CellWhite {
		return fmt.Errorf("place cell value %d: %w", cell, ErrOutOfRange)
	}
	if b.write(row*BoardSize+col, cell) {
		b.scores.onCellChanged(b, row, col)
	}
	return nil
}

func (b *Board) Play(row, col int) error {
	if !b.InBounds(row, col) {
		return fmt.Errorf("play (%d,%d): %w", row, col, ErrOutOfRange)
	}
	idx := row*BoardSize + col
	if b.cells[idx] != CellEmpty {
		return fmt.Errorf("play (%d,%d): %w", row, col, ErrCellOccupied)
	}
	player := b.toMove
	b.write(idx, CellFromPlayer(player))
	b.scores.onCellChanged(b, row, col)
	b.history.Push(HistoryEntry{Move: Move{Row: row, Col: col}, Player: player})
	b.toMove = otherPlayer(player)
	return nil
}

// UndoLast pops the last recorded move and hands the turn back to its author.
func (b *Board) UndoLast() (HistoryEntry, error) {
	entry, ok := b.history.Pop()
	if !ok {
		return HistoryEntry{}, ErrNoHistory
	}
	b.write(entry.Move.index(), CellEmpty)
	b.scores.onCellChanged(b, entry.Move.Row, entry.Move.Col)
	b.toMove = entry.Player
	return entry, nil
}

func (b *Board) write(idx int, cell Cell) bool {
	prev := b.cells[idx]
	if prev == cell {
		return false
	}
	b.hash ^= boardZobrist.stone(idx, prev) ^ boardZobrist.stone(idx, cell)
	if prev == CellEmpty {
		b.stones++
	} else if cell == CellEmpty {
		b.stones--
	}
	b.cells[idx] = cell
	return true
}

// BoardScore is the cached aggregate evaluation of the position for player.
func (b *Board) BoardScore(player PlayerColor, weight float64) int {
	return b.scores.boardScore(b, player, weight)
}

// Status scans every line of the board.
func (b *Board) Status() GameStatus {
	for _, line := range lineIndexes {
		run := 0
		var last Cell
		for _, idx := range line {
			cell := b.cells[idx]
			if cell != CellEmpty && cell == last {
				run++
			} else {
				run = 1
			}
			last = cell
			if cell != CellEmpty && run >= winLength {
				player, _ := PlayerFromCell(cell)
				return winStatusFor(player)
			}
		}
	}
	if b.stones == boardCells {
		return StatusDraw
	}
	return StatusRunning
}

// StatusAfter only inspects the lines through m, falling back to a full
// scan when m does not hold a stone.
func (b *Board) StatusAfter(m Move) GameStatus {
	if !m.IsValid() || b.cells[m.index()] == CellEmpty {
		return b.Status()
	}
	for dir := range directionSteps {
		if b.runLength(m, Direction(dir)) >= winLength {
			player, _ := PlayerFromCell(b.cells[m.index()])
			return winStatusFor(player)
		}
	}
	if b.stones == boardCells {
		return StatusDraw
	}
	return StatusRunning
}

// WinningLine returns the cells of a five-or-longer run through m, or nil.
func (b *Board) WinningLine(m Move) []Move {
	if !m.IsValid() {
		return nil
	}
	cell := b.cells[m.index()]
	if cell == CellEmpty {
		return nil
	}
	for dir, step := range directionSteps {
		if b.runLength(m, Direction(dir)) < winLength {
			continue
		}
		r, c := m.Row, m.Col
		for b.InBounds(r-step[0], c-step[1]) && b.At(r-step[0], c-step[1]) == cell {
			r, c = r-step[0], c-step[1]
		}
		line := []Move{}
		for b.InBounds(r, c) && b.At(r, c) == cell {
			line = append(line, Move{Row: r, Col: c})
			r, c = r+step[0], c+step[1]
		}
		return line
	}
	return nil
}

func (b *Board) runLength(m Move, dir Direction) int {
	cell := b.cells[m.index()]
	step := directionSteps[dir]
	count := 1
	for r, c := m.Row+step[0], m.Col+step[1]; b.InBounds(r, c) && b.At(r, c) == cell; r, c = r+step[0], c+step[1] {
		count++
	}
	for r, c := m.Row-step[0], m.Col-step[1]; b.InBounds(r, c) && b.At(r, c) == cell; r, c = r-step[0], c-step[1] {
		count++
	}
	return count
}

// LineViews returns copies of the 15 rows, 15 columns, 29 down-right and
// 29 down-left diagonals.
func (b *Board) LineViews() [][]Cell {
	views := make([][]Cell, 0, len(lineIndexes))
	for _, line := range lineIndexes {
		view := make([]Cell, len(line))
		for i, idx := range line {
			view[i] = b.cells[idx]
		}
		views = append(views, view)
	}
	return views
}

var lineIndexes = buildLineIndexes()

func buildLineIndexes() [][]int {
	lines := make([][]int, 0, 2*BoardSize+2*(2*BoardSize-1))
	for row := 0; row < BoardSize; row++ {
		line := make([]int, 0, BoardSize)
		for col := 0; col < BoardSize; col++ {
			line = append(line, row*BoardSize+col)
		}
		lines = append(lines, line)
	}
	for col := 0; col < BoardSize; col++ {
		line := make([]int, 0, BoardSize)
		for row := 0; row < BoardSize; row++ {
			line = append(line, row*BoardSize+col)
		}
		lines = append(lines, line)
	}
	for d := -(BoardSize - 1); d < BoardSize; d++ {
		line := []int{}
		for row := 0; row < BoardSize; row++ {
			if col := row + d; col >= 0 && col < BoardSize {
				line = append(line, row*BoardSize+col)
			}
		}
		lines = append(lines, line)
	}
	for s := 0; s <= 2*(BoardSize-1); s++ {
		line := []int{}
		for row := 0; row < BoardSize; row++ {
			if col := s - row; col >= 0 && col < BoardSize {
				line = append(line, row*BoardSize+col)
			}
		}
		lines = append(lines, line)
	}
	return lines
}

func (b *Board) Clone() *Board {
	clone := *b
	clone.history = MoveHistory{entries: b.history.All()}
	clone.scores = b.scores.clone()
	return &clone
}

func (b *Board) String() string {
	var sb strings.Builder
	sb.WriteString("  ")
	for col := 0; col < BoardSize; col++ {
		fmt.Fprintf(&sb, "%3d", col)
	}
	sb.WriteByte('\n')
	for row := 0; row < BoardSize; row++ {
		fmt.Fprintf(&sb, "%2d", row)
		for col := 0; col < BoardSize; col++ {
			sb.WriteString("  ")
			sb.WriteString(b.At(row, col).glyph())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (c Cell) glyph() string {
	switch c {
	case CellBlack:
		return "●"
	case CellWhite:
		return "○"
	default:
		return "_"
	}
}

func (c Cell) String() string {
	switch c {
	case CellBlack:
		return "Black"
	case CellWhite:
		return "White"
	default:
		return "Empty"
	}
}

func CellFromPlayer(player PlayerColor) Cell {
	if player == PlayerBlack {
		return CellBlack
	}
	return CellWhite
}

// PlayerFromCell reports the owner of a stone; ok is false for an empty cell.
func PlayerFromCell(cell Cell) (player PlayerColor, ok bool) {
	switch cell {
	case CellBlack:
		return PlayerBlack, true
	case CellWhite:
		return PlayerWhite, true
	}
	return PlayerBlack, false
}
