package main

type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

var centerMove = Move{Row: BoardSize / 2, Col: BoardSize / 2}

func NewMove(row, col int) Move {
	return Move{Row: row, Col: col}
}

func (m Move) IsValid() bool {
	return m.Row >= 0 && m.Col >= 0 && m.Row < BoardSize && m.Col < BoardSize
}

func (m Move) Equals(other Move) bool {
	return m.Row == other.Row && m.Col == other.Col
}

func (m Move) index() int {
	return m.Row*BoardSize + m.Col
}

func moveFromIndex(idx int) Move {
	return Move{Row: idx / BoardSize, Col: idx % BoardSize}
}
