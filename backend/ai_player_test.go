package main

import (
	"errors"
	"testing"
)

func quickAI(t *testing.T, color PlayerColor) *AIPlayer {
	t.Helper()
	ai, err := NewAIPlayer(color, 0.8, 1, false, DefaultConfig())
	if err != nil {
		t.Fatalf("new ai: %v", err)
	}
	return ai
}

func TestAIPlayerThinksOnACopy(t *testing.T) {
	b, err := BoardFromMoves([]Move{{7, 7}, {7, 8}, {8, 8}})
	if err != nil {
		t.Fatalf("from moves: %v", err)
	}
	ai := quickAI(t, PlayerWhite)
	ai.StartThinking(b)
	ai.Wait()

	if !ai.HasMoveReady() {
		t.Fatalf("expected a move once the search finished")
	}
	res, hash, err := ai.TakeMove()
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hash != b.Fingerprint() {
		t.Fatalf("result tagged with the wrong position")
	}
	if !b.IsEmpty(res.Move.Row, res.Move.Col) {
		t.Fatalf("AI picked occupied cell %v", res.Move)
	}
	if b.StoneCount() != 3 {
		t.Fatalf("live board modified by the search")
	}
	if ai.HasMoveReady() {
		t.Fatalf("TakeMove must consume the result")
	}
}

func TestAIPlayerStopDiscardsResult(t *testing.T) {
	b, err := BoardFromMoves([]Move{{7, 7}, {7, 8}, {8, 8}})
	if err != nil {
		t.Fatalf("from moves: %v", err)
	}
	ai := quickAI(t, PlayerWhite)
	ai.StartThinking(b)
	ai.StopThinking()
	ai.Wait()
	if ai.HasMoveReady() {
		t.Fatalf("a stopped search must not publish its move")
	}
	if ai.IsThinking() {
		t.Fatalf("worker still marked as thinking")
	}
}

func TestNewAIPlayerRejectsBadWeight(t *testing.T) {
	if _, err := NewAIPlayer(PlayerBlack, 3, 1, false, DefaultConfig()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
