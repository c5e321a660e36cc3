package main

type IPlayer interface {
	IsHuman() bool
	Color() PlayerColor
}
