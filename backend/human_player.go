package main

type HumanPlayer struct {
	color       PlayerColor
	pending     bool
	pendingMove Move
}

func NewHumanPlayer(color PlayerColor) *HumanPlayer {
	return &HumanPlayer{color: color}
}

func (h *HumanPlayer) IsHuman() bool {
	return true
}

func (h *HumanPlayer) Color() PlayerColor {
	return h.color
}

func (h *HumanPlayer) SetPendingMove(move Move) {
	h.pendingMove = move
	h.pending = true
}

func (h *HumanPlayer) HasPendingMove() bool {
	return h.pending
}

func (h *HumanPlayer) TakePendingMove() Move {
	h.pending = false
	return h.pendingMove
}
