package main

type Direction int

const (
	DirHorizontal Direction = iota
	DirVertical
	DirDiagonal
	DirAntiDiagonal
)

const directionCount = 4

// directionSteps holds (row, col) unit steps: horizontal, vertical, down-right, down-left.
var directionSteps = [directionCount][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

const (
	scoreFive         = 10_000_000
	scoreOpenFour     = 100_000
	scoreOpenThree    = 1_000
	scoreOpenTwo      = 100
	scoreOpenOne      = 10
	scoreBlockedFour  = 1_000
	scoreBlockedThree = 100
	scoreBlockedTwo   = 10
	scoreBlockedOne   = 1
)

// scoreCell scores the run through (row, col) along dir as if player owned
// the cell. At most one single-cell gap is absorbed, and only when another
// of the player's stones follows it. When both sides offer a gap, the side
// that scores higher wins, so a pattern and its half-turn score the same.
func (b *Board) scoreCell(row, col int, player PlayerColor, dir Direction) int {
	own := CellFromPlayer(player)
	dr, dc := directionSteps[dir][0], directionSteps[dir][1]
	return max(b.scanRun(row, col, own, dr, dc), b.scanRun(row, col, own, -dr, -dc))
}

// scanRun walks (dr, dc) first and then the opposite way. The first walk
// gets the first chance at the gap.
func (b *Board) scanRun(row, col int, own Cell, dr, dc int) int {
	gap, count, block := -1, 1, 0

	for r, c := row+dr, col+dc; ; r, c = r+dr, c+dc {
		if !b.InBounds(r, c) {
			block++
			break
		}
		cell := b.cells[r*BoardSize+c]
		if cell == CellEmpty {
			if gap == -1 && b.InBounds(r+dr, c+dc) && b.cells[(r+dr)*BoardSize+c+dc] == own {
				gap = count
				continue
			}
			break
		}
		if cell != own {
			block++
			break
		}
		count++
	}

	for r, c := row-dr, col-dc; ; r, c = r-dr, c-dc {
		if !b.InBounds(r, c) {
			block++
			break
		}
		cell := b.cells[r*BoardSize+c]
		if cell == CellEmpty {
			if gap == -1 && b.InBounds(r-dr, c-dc) && b.cells[(r-dr)*BoardSize+c-dc] == own {
				gap = 0
				continue
			}
			break
		}
		if cell != own {
			block++
			break
		}
		count++
		if gap != -1 {
			gap++
		}
	}

	return classifyRun(gap, count, block)
}

// classifyRun maps (gap offset, run length, blocked ends) to points. gap is
// the number of stones on the leading side of the gap, or -1 for none.
func classifyRun(gap, count, block int) int {
	switch {
	case gap <= 0:
		if count >= 5 {
			return scoreFive
		}
		if block == 0 {
			switch count {
			case 1:
				return scoreOpenOne
			case 2:
				return scoreOpenTwo
			case 3:
				return scoreOpenThree
			case 4:
				return scoreOpenFour
			}
		} else if block == 1 {
			switch count {
			case 1:
				return scoreBlockedOne
			case 2:
				return scoreBlockedTwo
			case 3:
				return scoreBlockedThree
			case 4:
				return scoreBlockedFour
			}
		}
	case gap == 1 || gap == count-1:
		if count >= 6 {
			return scoreFive
		}
		if block == 0 {
			switch count {
			case 2:
				return scoreOpenTwo / 2
			case 3:
				return scoreOpenThree
			case 4:
				return scoreBlockedFour
			case 5:
				return scoreOpenFour
			}
		} else if block == 1 {
			switch count {
			case 2:
				return scoreBlockedTwo
			case 3:
				return scoreBlockedThree
			case 4, 5:
				return scoreBlockedFour
			}
		}
	case gap == 2 || gap == count-2:
		if count >= 7 {
			return scoreFive
		}
		switch block {
		case 0:
			switch count {
			case 3:
				return scoreOpenThree
			case 4, 5:
				return scoreBlockedFour
			case 6:
				return scoreOpenFour
			}
		case 1:
			switch count {
			case 3:
				return scoreBlockedThree
			case 4, 5:
				return scoreBlockedFour
			case 6:
				return scoreOpenFour
			}
		case 2:
			switch count {
			case 4, 5, 6:
				return scoreBlockedFour
			}
		}
	case gap == 3 || gap == count-3:
		if count >= 8 {
			return scoreFive
		}
		switch block {
		case 0:
			switch count {
			case 4, 5:
				return scoreOpenThree
			case 6:
				return scoreBlockedFour
			case 7:
				return scoreOpenFour
			}
		case 1:
			switch count {
			case 4, 5, 6:
				return scoreBlockedFour
			case 7:
				return scoreOpenFour
			}
		case 2:
			switch count {
			case 4, 5, 6, 7:
				return scoreBlockedFour
			}
		}
	case gap == 4 || gap == count-4:
		if count > 9 {
			return scoreFive
		}
		switch block {
		case 0:
			switch count {
			case 5, 6, 7, 8:
				return scoreOpenFour
			}
		case 1:
			switch count {
			case 4, 5, 6, 7:
				return scoreBlockedFour
			case 8:
				return scoreOpenFour
			}
		case 2:
			switch count {
			case 5, 6, 7, 8:
				return scoreBlockedFour
			}
		}
	case gap == 5 || gap == count-5:
		return scoreFive
	}
	return 0
}
