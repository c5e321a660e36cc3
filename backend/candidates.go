package main

import (
	"sort"

	"lukechampine.com/frand"
)

// youngGameStones is the stone count below which only adjacent cells count
// as neighbors.
const youngGameStones = 6

type candidateTier int

const (
	tierWin candidateTier = iota
	tierBlockWin
	tierFour
	tierBlockFour
	tierBlockedFour
	tierBlockBlockedFour
	tierDoubleThree
	tierBlockDoubleThree
	tierThree
	tierBlockThree
	tierTwo
	tierBlockTwo
	tierNeighbor
	tierCount
)

var tierNames = [tierCount]string{
	"win", "block_win", "four", "block_four", "blocked_four", "block_blocked_four",
	"double_three", "block_double_three", "three", "block_three", "two", "block_two", "neighbor",
}

func (t candidateTier) String() string {
	if t < 0 || t >= tierCount {
		return "unknown"
	}
	return tierNames[t]
}

// tierThresholds pairs each own tier with the score it needs. The blocking
// tier for the same threshold always follows at rank+1.
var tierThresholds = []struct {
	own   candidateTier
	score int
}{
	{tierWin, scoreFive},
	{tierFour, scoreOpenFour},
	{tierBlockedFour, scoreBlockedFour},
	{tierDoubleThree, 2 * scoreOpenThree},
	{tierThree, scoreOpenThree},
	{tierTwo, scoreOpenTwo},
}

func classifyCandidate(self, opp int) candidateTier {
	for _, th := range tierThresholds {
		if self >= th.score {
			return th.own
		}
		if opp >= th.score {
			return th.own + 1
		}
	}
	return tierNeighbor
}

// Shuffler reorders a tier in place.
type Shuffler func(moves []Move)

func frandShuffle(moves []Move) {
	frand.Shuffle(len(moves), func(i, j int) {
		moves[i], moves[j] = moves[j], moves[i]
	})
}

type tieredMove struct {
	move Move
	tier candidateTier
}

type candidateTiers [tierCount][]Move

// classifyCandidates buckets every empty cell near a stone into its tier.
func classifyCandidates(b *Board, player PlayerColor, shuffle Shuffler) candidateTiers {
	var tiers candidateTiers
	if b.StoneCount() == 0 {
		return tiers
	}
	dist := 2
	if b.StoneCount() < youngGameStones {
		dist = 1
	}
	opp := otherPlayer(player)
	scored := make([]tieredMove, 0, 64)
	for idx, cell := range b.cells {
		if cell != CellEmpty {
			continue
		}
		m := moveFromIndex(idx)
		if !b.hasNeighbor(m.Row, m.Col, dist) {
			continue
		}
		tier := classifyCandidate(b.scores.cellTotal(player, idx), b.scores.cellTotal(opp, idx))
		scored = append(scored, tieredMove{move: m, tier: tier})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].tier < scored[j].tier
	})
	for start := 0; start < len(scored); {
		tier := scored[start].tier
		end := start
		for end < len(scored) && scored[end].tier == tier {
			end++
		}
		moves := make([]Move, 0, end-start)
		for _, tm := range scored[start:end] {
			moves = append(moves, tm.move)
		}
		if shuffle != nil {
			shuffle(moves)
		}
		tiers[tier] = moves
		start = end
	}
	return tiers
}

// generateCandidates returns the ordered moves worth searching for player.
// An empty board yields nothing; callers play the center.
func generateCandidates(b *Board, player PlayerColor, shuffle Shuffler, limit int) []Move {
	tiers := classifyCandidates(b, player, shuffle)
	return tiers.selectMoves(limit)
}

func (t *candidateTiers) selectMoves(limit int) []Move {
	var out []Move
	switch {
	case len(t[tierWin]) > 0:
		out = concatMoves(t[tierWin])
	case len(t[tierBlockWin]) > 0:
		out = concatMoves(t[tierBlockWin])
	case len(t[tierFour]) > 0:
		out = concatMoves(t[tierFour], t[tierBlockFour])
	case len(t[tierBlockFour]) > 0:
		out = concatMoves(t[tierBlockFour], t[tierBlockedFour], t[tierBlockBlockedFour])
	default:
		out = concatMoves(
			t[tierDoubleThree], t[tierBlockDoubleThree],
			t[tierBlockedFour], t[tierBlockBlockedFour],
			t[tierThree], t[tierBlockThree],
		)
		if len(t[tierDoubleThree]) > 0 || len(t[tierBlockDoubleThree]) > 0 {
			break
		}
		if len(t[tierTwo]) > 0 || len(t[tierBlockTwo]) > 0 {
			out = append(out, t[tierTwo]...)
			out = append(out, t[tierBlockTwo]...)
		} else {
			out = append(out, t[tierNeighbor]...)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func concatMoves(groups ...[]Move) []Move {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	out := make([]Move, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func (b *Board) hasNeighbor(row, col, dist int) bool {
	for r := row - dist; r <= row+dist; r++ {
		for c := col - dist; c <= col+dist; c++ {
			if (r == row && c == col) || !b.InBounds(r, c) {
				continue
			}
			if b.cells[r*BoardSize+c] != CellEmpty {
				return true
			}
		}
	}
	return false
}
