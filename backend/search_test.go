package main

import (
	"errors"
	"math"
	"testing"
)

func deterministicEngine(t *testing.T, player PlayerColor, weight float64) *Engine {
	t.Helper()
	e, err := NewEngine(player, weight, DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	e.shuffle = keepOrder
	e.pick = func(int) int { return 0 }
	return e
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		player PlayerColor
		weight float64
	}{
		{PlayerColor(5), 1},
		{PlayerBlack, -0.1},
		{PlayerWhite, 2.5},
		{PlayerWhite, math.NaN()},
	}
	for _, tc := range cases {
		if _, err := NewEngine(tc.player, tc.weight, DefaultConfig()); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("NewEngine(%v, %v): expected ErrInvalidConfig, got %v", tc.player, tc.weight, err)
		}
	}
	for _, w := range []float64{0, 0.8, 2} {
		if _, err := NewEngine(PlayerBlack, w, DefaultConfig()); err != nil {
			t.Fatalf("weight %v should be accepted: %v", w, err)
		}
	}
}

func TestBestMoveOnEmptyBoardPlaysCenter(t *testing.T) {
	e, err := NewEngine(PlayerBlack, 0.8, DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	for depth := 0; depth <= 4; depth++ {
		res, err := e.BestMove(NewBoard(), depth)
		if err != nil {
			t.Fatalf("depth %d: %v", depth, err)
		}
		if res.Move != centerMove || res.Value != 0 {
			t.Fatalf("depth %d: expected center with value 0, got %+v", depth, res)
		}
	}
}

func TestIterativeDeepeningCompletesOpenFour(t *testing.T) {
	b := boardWith(t, []Move{{7, 4}, {7, 5}, {7, 6}, {7, 7}}, []Move{{6, 6}, {8, 8}, {6, 5}})
	if got := b.BoardScore(PlayerBlack, 1); got <= scoreOpenFour {
		t.Fatalf("expected open four score above %d, got %d", scoreOpenFour, got)
	}
	cells := b.Cells()
	hash := b.Fingerprint()

	e, err := NewEngine(PlayerBlack, 0.8, DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	for i := 0; i < 5; i++ {
		res, err := e.IterativeDeepening(b, 4, true)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if res.Move != (Move{7, 3}) && res.Move != (Move{7, 8}) {
			t.Fatalf("expected a winning completion, got %v", res.Move)
		}
	}
	if b.Cells() != cells || b.Fingerprint() != hash || b.StoneCount() != 7 {
		t.Fatalf("search left the board modified")
	}
}

func TestBestMoveBlocksOpponentFive(t *testing.T) {
	b := boardWith(t, []Move{{3, 3}, {3, 4}, {11, 11}}, []Move{{7, 5}, {7, 6}, {7, 7}, {7, 8}})
	e := deterministicEngine(t, PlayerBlack, 0.8)
	res, err := e.BestMove(b, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Move != (Move{7, 4}) && res.Move != (Move{7, 9}) {
		t.Fatalf("expected a block, got %v", res.Move)
	}
}

// bruteMax and bruteMin mirror the search without any pruning.
func bruteMax(e *Engine, b *Board, last Move, depth int) float64 {
	if depth < 0 || b.StatusAfter(last) != StatusRunning {
		return float64(b.BoardScore(e.player, e.weight))
	}
	moves := e.candidates(b, e.player)
	if len(moves) == 0 {
		return float64(b.BoardScore(e.player, e.weight))
	}
	s := depthScale(depth)
	best := math.Inf(-1)
	for _, m := range moves {
		mustPlace(b, m, CellFromPlayer(e.player))
		v := s * bruteMin(e, b, m, depth-1)
		mustPlace(b, m, CellEmpty)
		best = math.Max(best, v)
	}
	return best
}

func bruteMin(e *Engine, b *Board, last Move, depth int) float64 {
	opp := otherPlayer(e.player)
	if depth < 0 || b.StatusAfter(last) != StatusRunning {
		return float64(b.BoardScore(opp, e.weight))
	}
	moves := e.candidates(b, opp)
	if len(moves) == 0 {
		return float64(b.BoardScore(opp, e.weight))
	}
	s := depthScale(depth)
	best := math.Inf(1)
	for _, m := range moves {
		mustPlace(b, m, CellFromPlayer(opp))
		v := s * bruteMax(e, b, m, depth-1)
		mustPlace(b, m, CellEmpty)
		best = math.Min(best, v)
	}
	return best
}

func bruteRoot(e *Engine, b *Board, depth int) float64 {
	s := depthScale(depth)
	best := math.Inf(-1)
	for _, m := range e.candidates(b, e.player) {
		mustPlace(b, m, CellFromPlayer(e.player))
		v := s * bruteMin(e, b, m, depth)
		mustPlace(b, m, CellEmpty)
		best = math.Max(best, v)
	}
	return best
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestPruningMatchesBruteForce(t *testing.T) {
	positions := [][]Move{
		{{7, 7}, {7, 8}, {8, 8}},
		{{7, 7}, {8, 8}, {7, 8}, {6, 6}},
		{{7, 7}, {7, 8}, {8, 7}, {6, 8}, {9, 7}},
	}
	for pi, moves := range positions {
		for depth := 0; depth <= 2; depth++ {
			b, err := BoardFromMoves(moves)
			if err != nil {
				t.Fatalf("from moves: %v", err)
			}
			e := deterministicEngine(t, b.ToMove(), 0.8)
			want := bruteRoot(e, b.Clone(), depth)
			res, err := e.BestMove(b, depth)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if !closeEnough(res.Value, want) {
				t.Fatalf("position %d depth %d: pruned %v, brute force %v", pi, depth, res.Value, want)
			}
		}
	}
}

func TestRootWorkersMatchSequentialValue(t *testing.T) {
	b, err := BoardFromMoves([]Move{{7, 7}, {7, 8}, {8, 8}, {6, 6}})
	if err != nil {
		t.Fatalf("from moves: %v", err)
	}
	seq := deterministicEngine(t, b.ToMove(), 1)
	par := deterministicEngine(t, b.ToMove(), 1)
	par.cfg.AiRootWorkers = 4

	want, err := seq.BestMove(b, 1)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	got, err := par.BestMove(b, 1)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if !closeEnough(got.Value, want.Value) {
		t.Fatalf("parallel value %v, sequential %v", got.Value, want.Value)
	}
	if got.Nodes != want.Nodes {
		t.Fatalf("parallel explored %d nodes, sequential %d", got.Nodes, want.Nodes)
	}
}

func TestAutoDepthBands(t *testing.T) {
	cases := map[int]int{0: 4, 9: 4, 10: 6, 13: 6, 14: 8, 100: 8}
	for stones, want := range cases {
		if got := autoDepth(stones); got != want {
			t.Fatalf("autoDepth(%d) = %d, want %d", stones, got, want)
		}
	}
}

func TestWarmupPromotesPositions(t *testing.T) {
	t.Cleanup(warmMemo.Clear)
	warmMemo.Clear()

	e, err := NewEngine(PlayerWhite, 0.8, DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	added, err := e.Warmup(1)
	if err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if added == 0 || warmMemo.Len() != added {
		t.Fatalf("expected promoted entries, added %d, warm %d", added, warmMemo.Len())
	}
}
