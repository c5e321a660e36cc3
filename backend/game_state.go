package main

type PlayerColor int

type GameStatus int

const (
	PlayerBlack PlayerColor = iota
	PlayerWhite
)

const (
	StatusNotStarted GameStatus = iota
	StatusRunning
	StatusBlackWon
	StatusWhiteWon
	StatusDraw
)

// GameState is a detached snapshot of a game handed out by the controller.
type GameState struct {
	Board       *Board
	ToMove      PlayerColor
	Status      GameStatus
	HasLastMove bool
	LastMove    Move
	LastMessage string
	WinningLine []Move
}

func (s GameState) Clone() GameState {
	clone := s
	if s.Board != nil {
		clone.Board = s.Board.Clone()
	}
	clone.WinningLine = append([]Move(nil), s.WinningLine...)
	return clone
}

func otherPlayer(player PlayerColor) PlayerColor {
	if player == PlayerBlack {
		return PlayerWhite
	}
	return PlayerBlack
}

func (p PlayerColor) valid() bool {
	return p == PlayerBlack || p == PlayerWhite
}

func (p PlayerColor) String() string {
	if p == PlayerWhite {
		return "white"
	}
	return "black"
}

func winStatusFor(player PlayerColor) GameStatus {
	if player == PlayerBlack {
		return StatusBlackWon
	}
	return StatusWhiteWon
}

func (s GameStatus) Finished() bool {
	return s == StatusBlackWon || s == StatusWhiteWon || s == StatusDraw
}
