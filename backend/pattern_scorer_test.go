package main

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

func boardWith(t *testing.T, black, white []Move) *Board {
	t.Helper()
	b := NewBoard()
	for _, m := range black {
		if err := b.Place(m.Row, m.Col, CellBlack); err != nil {
			t.Fatalf("place black %v: %v", m, err)
		}
	}
	for _, m := range white {
		if err := b.Place(m.Row, m.Col, CellWhite); err != nil {
			t.Fatalf("place white %v: %v", m, err)
		}
	}
	return b
}

func TestClassifyRunTable(t *testing.T) {
	cases := []struct {
		gap, count, block int
		want              int
	}{
		{-1, 1, 0, scoreOpenOne},
		{-1, 2, 0, scoreOpenTwo},
		{-1, 3, 0, scoreOpenThree},
		{-1, 4, 0, scoreOpenFour},
		{-1, 5, 2, scoreFive},
		{-1, 1, 1, scoreBlockedOne},
		{-1, 3, 1, scoreBlockedThree},
		{-1, 4, 1, scoreBlockedFour},
		{-1, 4, 2, 0},
		{0, 2, 0, scoreOpenTwo},
		{1, 2, 0, 50},
		{1, 2, 1, scoreBlockedTwo},
		{1, 5, 0, scoreOpenFour},
		{1, 5, 1, scoreBlockedFour},
		{1, 6, 2, scoreFive},
		{2, 6, 0, scoreOpenFour},
		{2, 6, 2, scoreBlockedFour},
		{3, 7, 1, scoreOpenFour},
		{3, 8, 2, scoreFive},
		{4, 8, 0, scoreOpenFour},
		{4, 9, 0, 0},
		{5, 10, 0, scoreFive},
	}
	for _, tc := range cases {
		if got := classifyRun(tc.gap, tc.count, tc.block); got != tc.want {
			t.Fatalf("classifyRun(%d,%d,%d) = %d, want %d", tc.gap, tc.count, tc.block, got, tc.want)
		}
	}
}

func TestScoreCellOnEmptyBoard(t *testing.T) {
	b := NewBoard()
	if got := b.scoreCell(7, 7, PlayerBlack, DirHorizontal); got != scoreOpenOne {
		t.Fatalf("center single stone: got %d", got)
	}
	if got := b.scoreCell(7, 0, PlayerBlack, DirHorizontal); got != scoreBlockedOne {
		t.Fatalf("edge single stone: got %d", got)
	}
	if got := b.scoreCell(0, 0, PlayerWhite, DirDiagonal); got != scoreBlockedOne {
		t.Fatalf("corner diagonal: got %d", got)
	}
}

func TestScoreCellCompletingFive(t *testing.T) {
	b := boardWith(t, []Move{{7, 5}, {7, 6}, {7, 7}, {7, 8}}, nil)
	for _, m := range []Move{{7, 4}, {7, 9}} {
		if got := b.scoreCell(m.Row, m.Col, PlayerBlack, DirHorizontal); got != scoreFive {
			t.Fatalf("%v: expected five, got %d", m, got)
		}
	}
	if got := b.scoreCell(7, 9, PlayerWhite, DirHorizontal); got != scoreBlockedOne {
		t.Fatalf("white next to black four: expected blocked one, got %d", got)
	}
}

func TestScoreCellAbsorbsSingleGap(t *testing.T) {
	b := boardWith(t, []Move{{7, 5}, {7, 6}, {7, 8}}, nil)
	// 4 stones with a gap after the third: split three-plus-one.
	if got := b.scoreCell(7, 4, PlayerBlack, DirHorizontal); got != scoreBlockedFour {
		t.Fatalf("expected %d, got %d", scoreBlockedFour, got)
	}
	// filling the gap itself makes an open four.
	if got := b.scoreCell(7, 7, PlayerBlack, DirHorizontal); got != scoreOpenFour {
		t.Fatalf("expected open four, got %d", got)
	}
}

func TestScoreCellBlockedByOpponent(t *testing.T) {
	b := boardWith(t, []Move{{7, 6}, {7, 7}}, []Move{{7, 8}})
	if got := b.scoreCell(7, 5, PlayerBlack, DirHorizontal); got != scoreBlockedThree {
		t.Fatalf("expected blocked three, got %d", got)
	}
}

func rotate(m Move) Move {
	return Move{BoardSize - 1 - m.Row, BoardSize - 1 - m.Col}
}

// halfTurn builds the board rotated by 180 degrees.
func halfTurn(t *testing.T, b *Board) *Board {
	t.Helper()
	r := NewBoard()
	for idx := 0; idx < boardCells; idx++ {
		m := moveFromIndex(idx)
		if cell := b.At(m.Row, m.Col); cell != CellEmpty {
			rm := rotate(m)
			if err := r.Place(rm.Row, rm.Col, cell); err != nil {
				t.Fatalf("place %v: %v", rm, err)
			}
		}
	}
	return r
}

func assertHalfTurnSymmetric(t *testing.T, label string, b *Board) {
	t.Helper()
	r := halfTurn(t, b)
	for idx := 0; idx < boardCells; idx++ {
		m := moveFromIndex(idx)
		if !b.IsEmpty(m.Row, m.Col) {
			continue
		}
		rm := rotate(m)
		for _, player := range []PlayerColor{PlayerBlack, PlayerWhite} {
			for dir := Direction(0); dir < directionCount; dir++ {
				got := b.scoreCell(m.Row, m.Col, player, dir)
				mirrored := r.scoreCell(rm.Row, rm.Col, player, dir)
				if got != mirrored {
					t.Fatalf("%s cell %v dir %d player %v: %d vs rotated %d",
						label, m, dir, player, got, mirrored)
				}
			}
		}
	}
}

func TestScoreCellSymmetricUnderHalfTurn(t *testing.T) {
	patterns := []struct {
		black, white []Move
	}{
		{black: []Move{{7, 5}, {7, 6}, {7, 8}}, white: []Move{{7, 9}, {3, 3}}},
		{black: []Move{{2, 2}, {3, 3}, {5, 5}}, white: []Move{{10, 1}}},
		{black: []Move{{0, 10}, {0, 11}, {0, 12}}, white: []Move{{1, 13}}},
		{black: []Move{{4, 9}, {5, 8}, {7, 6}}, white: []Move{{12, 12}, {8, 5}}},
		{white: []Move{{7, 3}, {7, 4}, {7, 8}}},
		{black: []Move{{2, 4}, {3, 5}, {5, 7}, {7, 9}, {8, 10}}},
	}
	for pi, p := range patterns {
		assertHalfTurnSymmetric(t, fmt.Sprintf("pattern %d", pi), boardWith(t, p.black, p.white))
	}
}

func TestScoreCellSymmetricOnRandomBoards(t *testing.T) {
	rng := rand.New(rand.NewPCG(23, 5))
	for round := 0; round < 40; round++ {
		b := NewBoard()
		stones := 10 + rng.IntN(50)
		for placed := 0; placed < stones; {
			row, col := rng.IntN(BoardSize), rng.IntN(BoardSize)
			if !b.IsEmpty(row, col) {
				continue
			}
			cell := CellBlack
			if rng.IntN(2) == 1 {
				cell = CellWhite
			}
			if err := b.Place(row, col, cell); err != nil {
				t.Fatalf("place: %v", err)
			}
			placed++
		}
		assertHalfTurnSymmetric(t, fmt.Sprintf("round %d", round), b)
	}
}

// _ o o _ X _ o _ : the two-stone side is absorbed whichever way the line
// is read.
func TestScoreCellPrefersStrongerGapSide(t *testing.T) {
	b := boardWith(t, nil, []Move{{7, 3}, {7, 4}, {7, 8}})
	if got := b.scoreCell(7, 6, PlayerWhite, DirHorizontal); got != scoreOpenThree {
		t.Fatalf("expected open three, got %d", got)
	}
	r := halfTurn(t, b)
	rm := rotate(Move{7, 6})
	if got := r.scoreCell(rm.Row, rm.Col, PlayerWhite, DirHorizontal); got != scoreOpenThree {
		t.Fatalf("rotated: expected open three, got %d", got)
	}
}
