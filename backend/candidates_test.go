package main

import "testing"

func keepOrder([]Move) {}

func containsMove(moves []Move, m Move) bool {
	for _, candidate := range moves {
		if candidate == m {
			return true
		}
	}
	return false
}

func TestCandidatesIncludeBothCompletionsOfFour(t *testing.T) {
	b := boardWith(t, []Move{{7, 5}, {7, 6}, {7, 7}, {7, 8}}, []Move{{6, 6}, {8, 7}, {6, 8}})
	moves := generateCandidates(b, PlayerBlack, frandShuffle, 20)
	for _, want := range []Move{{7, 4}, {7, 9}} {
		if !containsMove(moves, want) {
			t.Fatalf("expected %v among %v", want, moves)
		}
	}
	for _, m := range moves {
		if !b.IsEmpty(m.Row, m.Col) {
			t.Fatalf("candidate %v is occupied", m)
		}
	}
}

func TestCandidatesBlockOpponentFive(t *testing.T) {
	b := boardWith(t, []Move{{3, 3}, {3, 4}, {11, 11}}, []Move{{7, 5}, {7, 6}, {7, 7}, {7, 8}})
	moves := generateCandidates(b, PlayerBlack, keepOrder, 20)
	if len(moves) != 2 {
		t.Fatalf("expected only the two blocking cells, got %v", moves)
	}
	if !containsMove(moves, Move{7, 4}) || !containsMove(moves, Move{7, 9}) {
		t.Fatalf("expected (7,4) and (7,9), got %v", moves)
	}
}

func TestCandidatesNeverOccupied(t *testing.T) {
	b, err := BoardFromMoves([]Move{{7, 7}, {7, 8}, {8, 8}, {6, 6}, {9, 9}, {5, 5}, {8, 6}, {6, 8}})
	if err != nil {
		t.Fatalf("from moves: %v", err)
	}
	for _, player := range []PlayerColor{PlayerBlack, PlayerWhite} {
		moves := generateCandidates(b, player, frandShuffle, 20)
		if len(moves) == 0 {
			t.Fatalf("expected candidates for %v", player)
		}
		if len(moves) > 20 {
			t.Fatalf("expected at most 20 candidates, got %d", len(moves))
		}
		seen := map[Move]bool{}
		for _, m := range moves {
			if !b.IsEmpty(m.Row, m.Col) {
				t.Fatalf("candidate %v is occupied", m)
			}
			if seen[m] {
				t.Fatalf("candidate %v listed twice", m)
			}
			seen[m] = true
		}
	}
}

func TestCandidatesEmptyBoard(t *testing.T) {
	if moves := generateCandidates(NewBoard(), PlayerBlack, frandShuffle, 20); len(moves) != 0 {
		t.Fatalf("expected no candidates on an empty board, got %v", moves)
	}
}

func TestCandidatesYoungGameUseAdjacentCells(t *testing.T) {
	b := boardWith(t, []Move{{7, 7}}, nil)
	moves := generateCandidates(b, PlayerWhite, keepOrder, 20)
	if len(moves) != 8 {
		t.Fatalf("expected the 8 adjacent cells, got %v", moves)
	}
	for _, m := range moves {
		if abs(m.Row-7) > 1 || abs(m.Col-7) > 1 {
			t.Fatalf("candidate %v is not adjacent", m)
		}
	}
}

func TestCandidatesLaterGameReachTwoCells(t *testing.T) {
	b := boardWith(t, []Move{{0, 0}, {0, 14}, {14, 0}}, []Move{{14, 14}, {0, 7}, {14, 7}})
	tiers := classifyCandidates(b, PlayerBlack, keepOrder)
	var all []Move
	for _, tier := range tiers {
		all = append(all, tier...)
	}
	if !containsMove(all, Move{2, 2}) {
		t.Fatalf("expected a cell two steps from a stone")
	}
	if containsMove(all, Move{3, 3}) {
		t.Fatalf("cell three steps away must not qualify")
	}

	young := boardWith(t, []Move{{0, 0}}, nil)
	if young.hasNeighbor(2, 2, 1) || !young.hasNeighbor(1, 1, 1) {
		t.Fatalf("young game neighbor check wrong")
	}
}

func TestClassifyCandidateOrder(t *testing.T) {
	cases := []struct {
		self, opp int
		want      candidateTier
	}{
		{scoreFive, scoreFive, tierWin},
		{scoreOpenFour, scoreFive, tierBlockWin},
		{scoreOpenFour, 0, tierFour},
		{0, scoreOpenFour, tierBlockFour},
		{scoreBlockedFour, scoreBlockedFour, tierBlockedFour},
		{0, 2 * scoreOpenThree, tierBlockBlockedFour},
		{scoreOpenTwo, 0, tierTwo},
		{50, scoreOpenTwo + 30, tierBlockTwo},
		{40, 40, tierNeighbor},
	}
	for _, tc := range cases {
		if got := classifyCandidate(tc.self, tc.opp); got != tc.want {
			t.Fatalf("classify(%d,%d) = %v, want %v", tc.self, tc.opp, got, tc.want)
		}
	}
}

func TestSelectMovesPolicy(t *testing.T) {
	a, c, d, e := Move{1, 1}, Move{2, 2}, Move{3, 3}, Move{4, 4}

	var tiers candidateTiers
	tiers[tierFour] = []Move{a}
	tiers[tierBlockFour] = []Move{c}
	tiers[tierBlockedFour] = []Move{d}
	if got := tiers.selectMoves(20); len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("own fours then blocks expected, got %v", got)
	}

	tiers = candidateTiers{}
	tiers[tierBlockFour] = []Move{c}
	tiers[tierBlockedFour] = []Move{d}
	tiers[tierThree] = []Move{e}
	if got := tiers.selectMoves(20); len(got) != 2 || got[0] != c || got[1] != d {
		t.Fatalf("blocks then blocked fours expected, got %v", got)
	}

	tiers = candidateTiers{}
	tiers[tierDoubleThree] = []Move{a}
	tiers[tierThree] = []Move{c}
	tiers[tierTwo] = []Move{d}
	if got := tiers.selectMoves(20); len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("double three batch without twos expected, got %v", got)
	}

	tiers = candidateTiers{}
	tiers[tierThree] = []Move{a}
	tiers[tierBlockTwo] = []Move{c}
	tiers[tierNeighbor] = []Move{d}
	if got := tiers.selectMoves(20); len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("threes then twos expected, got %v", got)
	}

	tiers = candidateTiers{}
	tiers[tierNeighbor] = []Move{a, c, d, e}
	if got := tiers.selectMoves(3); len(got) != 3 {
		t.Fatalf("expected cap of 3, got %v", got)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
