package main

import "errors"

var (
	ErrOutOfRange     = errors.New("out of range")
	ErrCellOccupied   = errors.New("cell occupied")
	ErrNoHistory      = errors.New("no history")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrBoardFull      = errors.New("no empty cell left")
	ErrGameNotRunning = errors.New("game not running")
	ErrNotHumanTurn   = errors.New("not human turn")
)
