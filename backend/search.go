package main

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"
)

const (
	autoDepthOpening = 4
	autoDepthMiddle  = 6
	autoDepthLate    = 8
	middleStones     = 10
	lateStones       = 14
)

type SearchStats struct {
	Nodes      int64 `json:"nodes"`
	Leaves     int64 `json:"leaves"`
	Cutoffs    int64 `json:"cutoffs"`
	Candidates int64 `json:"candidates"`
	MemoHits   int64 `json:"memo_hits"`
	MemoMisses int64 `json:"memo_misses"`
}

func (s *SearchStats) add(other SearchStats) {
	s.Nodes += other.Nodes
	s.Leaves += other.Leaves
	s.Cutoffs += other.Cutoffs
	s.Candidates += other.Candidates
	s.MemoHits += other.MemoHits
	s.MemoMisses += other.MemoMisses
}

type SearchResult struct {
	Move    Move          `json:"move"`
	Value   float64       `json:"value"`
	Depth   int           `json:"depth"`
	Nodes   int64         `json:"nodes"`
	Elapsed time.Duration `json:"elapsed"`
	Stats   SearchStats   `json:"stats"`
}

// Engine searches on behalf of one player with a fixed defensive weight.
type Engine struct {
	player  PlayerColor
	weight  float64
	cfg     Config
	shuffle Shuffler
	pick    func(n int) int
}

func NewEngine(player PlayerColor, weight float64, cfg Config) (*Engine, error) {
	if !player.valid() {
		return nil, fmt.Errorf("engine player %d: %w", player, ErrInvalidConfig)
	}
	if math.IsNaN(weight) || weight < 0 || weight > 2 {
		return nil, fmt.Errorf("engine weight %v not in [0,2]: %w", weight, ErrInvalidConfig)
	}
	return &Engine{
		player:  player,
		weight:  weight,
		cfg:     cfg.Normalize(),
		shuffle: frandShuffle,
		pick:    frand.Intn,
	}, nil
}

func (e *Engine) Player() PlayerColor {
	return e.player
}

func (e *Engine) Weight() float64 {
	return e.weight
}

// Candidates lists the moves the engine would consider for its player.
func (e *Engine) Candidates(b *Board) []Move {
	return e.candidates(b, e.player)
}

func (e *Engine) candidates(b *Board, player PlayerColor) []Move {
	moves := generateCandidates(b, player, e.shuffle, e.cfg.AiMaxCandidates)
	if len(moves) > e.cfg.AiSearchCandidates {
		moves = moves[:e.cfg.AiSearchCandidates]
	}
	return moves
}

func autoDepth(stones int) int {
	switch {
	case stones >= lateStones:
		return autoDepthLate
	case stones >= middleStones:
		return autoDepthMiddle
	default:
		return autoDepthOpening
	}
}

// depthScale favours values reached with more depth left, i.e. sooner.
func depthScale(depth int) float64 {
	return 1 + float64(depth)/10
}

type searchRun struct {
	e     *Engine
	b     *Board
	stats SearchStats
}

func (r *searchRun) maxSearch(last Move, depth int, alpha, beta float64) float64 {
	r.stats.Nodes++
	if depth < 0 || r.b.StatusAfter(last) != StatusRunning {
		return r.leaf(r.e.player)
	}
	moves := r.e.candidates(r.b, r.e.player)
	if len(moves) == 0 {
		return r.leaf(r.e.player)
	}
	r.stats.Candidates += int64(len(moves))
	s := depthScale(depth)
	for _, m := range moves {
		v := s * r.withMove(m, r.e.player, func() float64 {
			return r.minSearch(m, depth-1, alpha/s, beta/s)
		})
		alpha = math.Max(alpha, v)
		if beta < alpha {
			r.stats.Cutoffs++
			break
		}
	}
	return alpha
}

func (r *searchRun) minSearch(last Move, depth int, alpha, beta float64) float64 {
	r.stats.Nodes++
	opp := otherPlayer(r.e.player)
	if depth < 0 || r.b.StatusAfter(last) != StatusRunning {
		return r.leaf(opp)
	}
	moves := r.e.candidates(r.b, opp)
	if len(moves) == 0 {
		return r.leaf(opp)
	}
	r.stats.Candidates += int64(len(moves))
	s := depthScale(depth)
	for _, m := range moves {
		v := s * r.withMove(m, opp, func() float64 {
			return r.maxSearch(m, depth-1, alpha/s, beta/s)
		})
		beta = math.Min(beta, v)
		if beta < alpha {
			r.stats.Cutoffs++
			break
		}
	}
	return beta
}

// leaf scores the position from the seat of the player acting at the node.
func (r *searchRun) leaf(player PlayerColor) float64 {
	r.stats.Leaves++
	return float64(r.b.BoardScore(player, r.e.weight))
}

// withMove runs fn with player's stone on m; the cell is emptied on every
// exit path.
func (r *searchRun) withMove(m Move, player PlayerColor, fn func() float64) float64 {
	mustPlace(r.b, m, CellFromPlayer(player))
	defer mustPlace(r.b, m, CellEmpty)
	return fn()
}

func mustPlace(b *Board, m Move, cell Cell) {
	if cell != CellEmpty && !b.IsEmpty(m.Row, m.Col) {
		panic(fmt.Sprintf("search: place (%d,%d): %v", m.Row, m.Col, ErrCellOccupied))
	}
	if err := b.Place(m.Row, m.Col, cell); err != nil {
		panic(fmt.Sprintf("search: %v", err))
	}
}

func (r *searchRun) collectMemo(before ScoreCacheStats) {
	after := r.b.scores.Stats()
	r.stats.MemoHits += after.MemoHits - before.MemoHits
	r.stats.MemoMisses += after.MemoMisses - before.MemoMisses
}

// BestMove evaluates every root candidate with a full-width min search and
// picks uniformly among the best.
func (e *Engine) BestMove(b *Board, depth int) (SearchResult, error) {
	start := time.Now()
	if b.StoneCount() == 0 {
		return SearchResult{Move: centerMove, Depth: depth, Elapsed: time.Since(start)}, nil
	}
	b.scores.ClearTransient()
	roots := e.candidates(b, e.player)
	if len(roots) == 0 {
		return SearchResult{}, ErrBoardFull
	}
	values, stats, err := e.scoreRoots(b, roots, depth)
	if err != nil {
		return SearchResult{}, err
	}

	best := values[0]
	ties := []Move{roots[0]}
	for i := 1; i < len(values); i++ {
		switch {
		case values[i] > best:
			best = values[i]
			ties = append(ties[:0], roots[i])
		case values[i] == best:
			ties = append(ties, roots[i])
		}
	}
	res := SearchResult{
		Move:    ties[e.pick(len(ties))],
		Value:   best,
		Depth:   depth,
		Nodes:   stats.Nodes,
		Elapsed: time.Since(start),
		Stats:   stats,
	}
	e.logResult("best-move", res, len(roots), len(ties))
	return res, nil
}

func (e *Engine) scoreRoots(b *Board, roots []Move, depth int) ([]float64, SearchStats, error) {
	values := make([]float64, len(roots))
	s := depthScale(depth)
	workers := e.cfg.AiRootWorkers

	if workers <= 1 || len(roots) == 1 {
		run := &searchRun{e: e, b: b}
		before := b.scores.Stats()
		for i, m := range roots {
			values[i] = s * run.withMove(m, e.player, func() float64 {
				return run.minSearch(m, depth, math.Inf(-1), math.Inf(1))
			})
		}
		run.collectMemo(before)
		return values, run.stats, nil
	}

	perRoot := make([]SearchStats, len(roots))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, m := range roots {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("root worker (%d,%d): %v", m.Row, m.Col, p)
				}
			}()
			run := &searchRun{e: e, b: b.Clone()}
			values[i] = s * run.withMove(m, e.player, func() float64 {
				return run.minSearch(m, depth, math.Inf(-1), math.Inf(1))
			})
			run.collectMemo(ScoreCacheStats{})
			perRoot[i] = run.stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, SearchStats{}, err
	}
	var stats SearchStats
	for _, st := range perRoot {
		stats.add(st)
	}
	return values, stats, nil
}

// IterativeDeepening searches even depths up to depth and stops early once a
// move leaves the engine's player with an open-four grade position.
// depth 0 picks a depth from the stone count.
func (e *Engine) IterativeDeepening(b *Board, depth int, useIteration bool) (SearchResult, error) {
	if depth == 0 {
		depth = autoDepth(b.StoneCount())
	}
	if !useIteration || depth < 2 || b.StoneCount() == 0 {
		return e.BestMove(b, depth)
	}

	start := time.Now()
	var total SearchStats
	var last, best SearchResult
	haveBest := false
	for d := 2; d <= depth; d += 2 {
		res, err := e.BestMove(b, d)
		if err != nil {
			return SearchResult{}, err
		}
		total.add(res.Stats)
		last = res
		if res.Value > 0 {
			best = res
			haveBest = true
		}
		if e.decisive(b, res.Move) {
			return finishIteration(res, total, start), nil
		}
	}
	if haveBest {
		last = best
	}
	return finishIteration(last, total, start), nil
}

func (e *Engine) decisive(b *Board, m Move) bool {
	mustPlace(b, m, CellFromPlayer(e.player))
	defer mustPlace(b, m, CellEmpty)
	return b.BoardScore(e.player, e.weight) >= scoreOpenFour
}

func finishIteration(res SearchResult, total SearchStats, start time.Time) SearchResult {
	res.Stats = total
	res.Nodes = total.Nodes
	res.Elapsed = time.Since(start)
	return res
}

// WarmFrom searches a copy of b for the side to move and promotes every
// position it scored into the warm memo. It returns how many were added.
func (e *Engine) WarmFrom(b *Board, depth int) (int, error) {
	if b.StoneCount() == 0 {
		return 0, nil
	}
	seq := *e
	seq.player = b.ToMove()
	seq.cfg.AiRootWorkers = 1
	work := b.Clone()
	if _, err := seq.BestMove(work, depth); err != nil {
		return 0, err
	}
	added := warmMemo.Promote(work.scores.memo, e.cfg.AiWarmMaxEntries)
	cacheLog.Debug().
		Int("depth", depth).
		Int("stones", b.StoneCount()).
		Int("added", added).
		Int("warm", warmMemo.Len()).
		Msg("warm-from")
	return added, nil
}

// Warmup precomputes the replies to the center opening into the warm memo.
func (e *Engine) Warmup(depth int) (int, error) {
	b := NewBoard()
	if err := b.Play(centerMove.Row, centerMove.Col); err != nil {
		return 0, err
	}
	return e.WarmFrom(b, depth)
}

func (e *Engine) logResult(tag string, res SearchResult, roots, ties int) {
	level := zerolog.DebugLevel
	if e.cfg.AiLogSearchStats {
		level = zerolog.InfoLevel
	}
	nps := 0.0
	if res.Elapsed > 0 {
		nps = float64(res.Nodes) / res.Elapsed.Seconds()
	}
	searchLog.WithLevel(level).
		Str("player", e.player.String()).
		Int("depth", res.Depth).
		Int("row", res.Move.Row).
		Int("col", res.Move.Col).
		Float64("value", res.Value).
		Int("roots", roots).
		Int("ties", ties).
		Int64("nodes", res.Stats.Nodes).
		Int64("leaves", res.Stats.Leaves).
		Int64("cutoffs", res.Stats.Cutoffs).
		Int64("memo_hits", res.Stats.MemoHits).
		Float64("nps", nps).
		Dur("elapsed", res.Elapsed).
		Msg(tag)
}
