package main

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// AIPlayer searches in the background on a copy of the board. A result is
// tagged with the fingerprint of the position it was computed for so the
// game can discard it once the board has moved on.
type AIPlayer struct {
	engine     *Engine
	depth      int
	iterate    bool
	moveMutex  sync.Mutex
	workerDone chan struct{}
	thinking   atomic.Bool
	moveReady  atomic.Bool
	generation atomic.Uint64
	readyMove  SearchResult
	readyHash  uint64
	readyErr   error
}

func NewAIPlayer(color PlayerColor, weight float64, depth int, iterate bool, cfg Config) (*AIPlayer, error) {
	engine, err := NewEngine(color, weight, cfg)
	if err != nil {
		return nil, err
	}
	return &AIPlayer{engine: engine, depth: depth, iterate: iterate}, nil
}

func (a *AIPlayer) IsHuman() bool {
	return false
}

func (a *AIPlayer) Color() PlayerColor {
	return a.engine.Player()
}

func (a *AIPlayer) Engine() *Engine {
	return a.engine
}

// ChooseMove searches synchronously on a copy of b.
func (a *AIPlayer) ChooseMove(b *Board) (SearchResult, error) {
	return a.engine.IterativeDeepening(b.Clone(), a.depth, a.iterate)
}

func (a *AIPlayer) StartThinking(b *Board) {
	if a.thinking.Load() {
		return
	}
	if a.workerDone != nil {
		<-a.workerDone
	}
	a.thinking.Store(true)
	a.moveReady.Store(false)

	gen := a.generation.Add(1)
	work := b.Clone()
	hash := b.Fingerprint()
	done := make(chan struct{})
	a.workerDone = done
	go func() {
		defer close(done)
		defer a.thinking.Store(false)
		res, err := a.search(work)
		if a.generation.Load() != gen {
			return
		}
		a.moveMutex.Lock()
		a.readyMove = res
		a.readyHash = hash
		a.readyErr = err
		a.moveMutex.Unlock()
		a.moveReady.Store(true)
	}()
}

func (a *AIPlayer) search(b *Board) (res SearchResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("search panicked: %v", p)
		}
	}()
	return a.engine.IterativeDeepening(b, a.depth, a.iterate)
}

// StopThinking drops whatever the running search produces. The search itself
// runs to completion in the background.
func (a *AIPlayer) StopThinking() {
	a.generation.Add(1)
	a.moveReady.Store(false)
}

func (a *AIPlayer) Wait() {
	if a.workerDone != nil {
		<-a.workerDone
	}
}

func (a *AIPlayer) IsThinking() bool {
	return a.thinking.Load()
}

func (a *AIPlayer) HasMoveReady() bool {
	return a.moveReady.Load()
}

// TakeMove returns the last result and the fingerprint of the position it
// was searched from.
func (a *AIPlayer) TakeMove() (SearchResult, uint64, error) {
	a.moveMutex.Lock()
	defer a.moveMutex.Unlock()
	a.moveReady.Store(false)
	return a.readyMove, a.readyHash, a.readyErr
}
