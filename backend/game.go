package main

import (
	"errors"
	"time"
)

type Game struct {
	settings    GameSettings
	board       *Board
	status      GameStatus
	history     MoveHistory
	lastMove    Move
	hasLastMove bool
	lastMessage string
	winningLine []Move
	blackPlayer IPlayer
	whitePlayer IPlayer
	hints       [2]*AIPlayer
	hintHash    uint64
	hintActive  bool
	hintDone    bool
	startedAt   time.Time
	turnStart   time.Time
	onFinished  func(GameRecord)
	onSearch    func(searchEvent)
}

func NewGame(settings GameSettings) Game {
	g := Game{}
	g.Reset(settings)
	return g
}

func (g *Game) Reset(settings GameSettings) {
	g.stopPlayers()
	g.stopMoveSuggestion(nil)
	g.settings = settings.normalize()
	g.board = NewBoard()
	g.status = StatusNotStarted
	g.history.Clear()
	g.hasLastMove = false
	g.lastMessage = ""
	g.winningLine = nil
	g.hints = [2]*AIPlayer{}
	g.createPlayers()
	g.turnStart = time.Now()
	g.logMatchup()
}

func (g *Game) Start() {
	if g.status == StatusNotStarted {
		g.status = StatusRunning
		g.startedAt = time.Now()
		g.turnStart = g.startedAt
		g.stopMoveSuggestion(nil)
	}
}

func (g *Game) State() GameState {
	return GameState{
		Board:       g.board.Clone(),
		ToMove:      g.board.ToMove(),
		Status:      g.status,
		HasLastMove: g.hasLastMove,
		LastMove:    g.lastMove,
		LastMessage: g.lastMessage,
		WinningLine: append([]Move(nil), g.winningLine...),
	}
}

func (g *Game) History() MoveHistory {
	return g.history
}

func (g *Game) TurnStartedAtMs() int64 {
	if g.turnStart.IsZero() {
		return 0
	}
	return g.turnStart.UnixMilli()
}

// TryApplyMove plays move for the side to move. meta carries the AI fields
// of the history record; the rest is filled in here.
func (g *Game) TryApplyMove(move Move, meta HistoryEntry) error {
	if g.status != StatusRunning {
		return ErrGameNotRunning
	}
	player := g.board.ToMove()
	elapsedMs := float64(time.Since(g.turnStart).Milliseconds())
	if err := g.board.Play(move.Row, move.Col); err != nil {
		g.lastMessage = "Illegal move: " + err.Error()
		return err
	}
	g.stopHintSearch()
	g.lastMessage = ""
	g.lastMove = move
	g.hasLastMove = true

	meta.Move = move
	meta.Player = player
	meta.ElapsedMs = elapsedMs
	g.history.Push(meta)
	g.logMovePlayed(meta)

	g.status = g.board.StatusAfter(move)
	if g.status.Finished() {
		g.finish(move)
	}
	g.turnStart = time.Now()
	return nil
}

func (g *Game) finish(last Move) {
	winner := 0
	if g.status != StatusDraw {
		g.winningLine = g.board.WinningLine(last)
		winner = winnerFromStatus(g.status)
	}
	g.logFinished()
	if g.onFinished == nil {
		return
	}
	g.onFinished(GameRecord{
		StartedAt:  g.startedAt,
		FinishedAt: time.Now(),
		Mode:       g.settings.Mode(),
		Winner:     winner,
		Moves:      g.history.Moves(),
	})
}

// Undo takes back the last move. Against an AI it also takes back the AI
// reply so the human is to move again.
func (g *Game) Undo() error {
	if g.status == StatusNotStarted {
		return ErrGameNotRunning
	}
	if g.history.Size() == 0 {
		return ErrNoHistory
	}
	g.stopPlayers()
	g.stopMoveSuggestion(nil)
	for {
		if _, err := g.board.UndoLast(); err != nil {
			return err
		}
		g.history.Pop()
		if g.history.Size() == 0 || g.CurrentPlayerIsHuman() || !g.hasHuman() {
			break
		}
	}
	g.status = StatusRunning
	g.winningLine = nil
	g.lastMessage = ""
	last, ok := g.history.Last()
	g.lastMove = last.Move
	g.hasLastMove = ok
	g.turnStart = time.Now()
	return nil
}

func (g *Game) Tick(ghostEnabled bool, ghostSink func(ghostPayload)) bool {
	if g.status != StatusRunning {
		g.stopMoveSuggestion(ghostSink)
		return false
	}
	player := g.currentPlayer()
	if player == nil {
		g.stopMoveSuggestion(ghostSink)
		return false
	}
	if player.IsHuman() {
		if ghostEnabled && ghostSink != nil {
			g.startMoveSuggestion(ghostSink)
		} else {
			g.stopMoveSuggestion(ghostSink)
		}
		human, ok := player.(*HumanPlayer)
		if ok && human.HasPendingMove() {
			move := human.TakePendingMove()
			return g.TryApplyMove(move, HistoryEntry{}) == nil
		}
		return false
	}
	g.stopMoveSuggestion(ghostSink)
	ai, ok := player.(*AIPlayer)
	if !ok {
		return false
	}
	if ai.HasMoveReady() {
		res, hash, err := ai.TakeMove()
		if hash != g.board.Fingerprint() {
			return false
		}
		if err != nil {
			g.lastMessage = "AI search failed: " + err.Error()
			backendLog.Error().Err(err).Str("player", ai.Color().String()).Msg("ai-search-failed")
			if errors.Is(err, ErrBoardFull) {
				g.status = StatusDraw
				g.finish(g.lastMove)
			}
			return false
		}
		g.publishSearch("move", ai.Color(), res)
		err = g.TryApplyMove(res.Move, HistoryEntry{IsAi: true, Depth: res.Depth, Score: res.Value})
		return err == nil
	}
	if !ai.IsThinking() {
		ai.StartThinking(g.board)
	}
	return false
}

func (g *Game) SubmitHumanMove(move Move) bool {
	human, ok := g.currentPlayer().(*HumanPlayer)
	if !ok {
		return false
	}
	human.SetPendingMove(move)
	return true
}

func (g *Game) CurrentPlayerIsHuman() bool {
	player := g.currentPlayer()
	return player != nil && player.IsHuman()
}

func (g *Game) hasHuman() bool {
	return g.settings.BlackType == PlayerHuman || g.settings.WhiteType == PlayerHuman
}

func (g *Game) currentPlayer() IPlayer {
	return g.playerForColor(g.board.ToMove())
}

func (g *Game) playerForColor(color PlayerColor) IPlayer {
	if color == PlayerBlack {
		return g.blackPlayer
	}
	return g.whitePlayer
}

func (g *Game) createPlayers() {
	g.blackPlayer = g.newPlayer(PlayerBlack)
	g.whitePlayer = g.newPlayer(PlayerWhite)
}

func (g *Game) newPlayer(color PlayerColor) IPlayer {
	if g.settings.typeFor(color) == PlayerHuman {
		return NewHumanPlayer(color)
	}
	ai, err := g.newAI(color)
	if err != nil {
		backendLog.Error().Err(err).Str("player", color.String()).Msg("ai-player-fallback-to-human")
		return NewHumanPlayer(color)
	}
	return ai
}

func (g *Game) newAI(color PlayerColor) (*AIPlayer, error) {
	return NewAIPlayer(color, g.settings.weightFor(color), g.settings.Depth, g.settings.UseIteration, GetConfig())
}

func (g *Game) stopPlayers() {
	for _, player := range []IPlayer{g.blackPlayer, g.whitePlayer} {
		if ai, ok := player.(*AIPlayer); ok {
			ai.StopThinking()
		}
	}
}

func (g *Game) publishSearch(purpose string, player PlayerColor, res SearchResult) {
	if g.onSearch == nil {
		return
	}
	g.onSearch(searchEvent{
		Purpose:    purpose,
		Player:     player,
		Stones:     g.board.StoneCount(),
		HistoryLen: g.history.Size(),
		Result:     res,
	})
}

func (g *Game) logMatchup() {
	label := func(t PlayerType) string {
		if t == PlayerAI {
			return "AI"
		}
		return "Human"
	}
	backendLog.Info().
		Str("black", label(g.settings.BlackType)).
		Str("white", label(g.settings.WhiteType)).
		Float64("black_weight", g.settings.BlackWeight).
		Float64("white_weight", g.settings.WhiteWeight).
		Int("depth", g.settings.Depth).
		Msg("matchup")
}

func (g *Game) logMovePlayed(entry HistoryEntry) {
	backendLog.Debug().
		Str("player", entry.Player.String()).
		Int("row", entry.Move.Row).
		Int("col", entry.Move.Col).
		Float64("elapsed_ms", entry.ElapsedMs).
		Bool("ai", entry.IsAi).
		Int("depth", entry.Depth).
		Msg("move")
}

func (g *Game) logFinished() {
	backendLog.Info().
		Str("status", statusToString(g.status)).
		Int("moves", g.history.Size()).
		Msg("game-finished")
}

func (g *Game) AiThinking() bool {
	ai, ok := g.currentPlayer().(*AIPlayer)
	return ok && ai.IsThinking()
}

// ResetForConfigChange rebuilds the AI players so they pick up the new
// engine configuration.
func (g *Game) ResetForConfigChange() {
	g.stopPlayers()
	g.stopMoveSuggestion(nil)
	g.hints = [2]*AIPlayer{}
	g.createPlayers()
}

func (g *Game) hintPlayer(color PlayerColor) *AIPlayer {
	if g.hints[color] == nil {
		ai, err := g.newAI(color)
		if err != nil {
			return nil
		}
		g.hints[color] = ai
	}
	return g.hints[color]
}

func (g *Game) startMoveSuggestion(ghostSink func(ghostPayload)) {
	color := g.board.ToMove()
	hint := g.hintPlayer(color)
	if hint == nil {
		return
	}
	hash := g.board.Fingerprint()
	toMove := playerToInt(color)
	if !g.hintActive || g.hintHash != hash {
		hint.StopThinking()
		g.hintHash = hash
		g.hintActive = true
		g.hintDone = false
		ghostSink(ghostPayload{
			Mode:       "candidates",
			Positions:  ghostCells(hint.Engine().Candidates(g.board), toMove),
			NextPlayer: toMove,
			HistoryLen: g.history.Size(),
			Active:     true,
		})
	}
	if g.hintDone {
		return
	}
	if hint.HasMoveReady() {
		res, resHash, err := hint.TakeMove()
		if err == nil && resHash == hash {
			g.hintDone = true
			ghostSink(ghostPayload{
				Mode:       "best_move",
				Best:       &ghostCell{Row: res.Move.Row, Col: res.Move.Col, Player: toMove},
				Depth:      res.Depth,
				Score:      res.Value,
				NextPlayer: toMove,
				HistoryLen: g.history.Size(),
				Active:     true,
				Final:      true,
			})
			g.publishSearch("hint", color, res)
			return
		}
	}
	if !hint.IsThinking() {
		hint.StartThinking(g.board)
	}
}

// stopHintSearch cancels the running suggestion but keeps the hint marked
// active, so the next tick either replaces it or publishes its removal.
func (g *Game) stopHintSearch() {
	for _, hint := range g.hints {
		if hint != nil {
			hint.StopThinking()
		}
	}
}

func (g *Game) stopMoveSuggestion(ghostSink func(ghostPayload)) {
	wasActive := g.hintActive
	g.hintActive = false
	g.hintDone = false
	g.hintHash = 0
	g.stopHintSearch()
	if wasActive && ghostSink != nil {
		ghostSink(ghostPayload{Mode: "best_move", Active: false})
	}
}
