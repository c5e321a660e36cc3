package main

import "sync"

type GameController struct {
	mu             sync.Mutex
	game           Game
	ghostEnabled   func() bool
	ghostPublisher func(ghostPayload)
}

func NewGameController(settings GameSettings) *GameController {
	return &GameController{game: NewGame(settings)}
}

func (gc *GameController) SetGhostPublisher(enabled func() bool, publisher func(ghostPayload)) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.ghostEnabled = enabled
	gc.ghostPublisher = publisher
}

// SetFinishedHook registers fn to receive every game that ends. fn runs with
// the controller locked and must not call back into it.
func (gc *GameController) SetFinishedHook(fn func(GameRecord)) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.game.onFinished = fn
}

// SetSearchHook registers fn to receive the result of every AI search the
// game consumes. Same locking rule as SetFinishedHook.
func (gc *GameController) SetSearchHook(fn func(searchEvent)) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.game.onSearch = fn
}

// OnCellClicked queues a move for the human to move; the next Tick plays it.
func (gc *GameController) OnCellClicked(row, col int) bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.SubmitHumanMove(Move{Row: row, Col: col})
}

func (gc *GameController) ApplyHumanMove(move Move) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if gc.game.status != StatusRunning {
		return ErrGameNotRunning
	}
	if !gc.game.CurrentPlayerIsHuman() {
		return ErrNotHumanTurn
	}
	return gc.game.TryApplyMove(move, HistoryEntry{})
}

func (gc *GameController) Undo() error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.Undo()
}

func (gc *GameController) Tick() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	ghostEnabled := false
	if gc.ghostEnabled != nil {
		ghostEnabled = gc.ghostEnabled()
	}
	return gc.game.Tick(ghostEnabled, gc.ghostPublisher)
}

func (gc *GameController) State() GameState {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.State()
}

func (gc *GameController) Settings() GameSettings {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.settings
}

func (gc *GameController) History() MoveHistory {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.History()
}

func (gc *GameController) BoardText() string {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.board.String()
}

func (gc *GameController) CurrentTurnStartedAtMs() int64 {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.TurnStartedAtMs()
}

func (gc *GameController) LatestHistoryEntry() (HistoryEntry, bool) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.History().Last()
}

func (gc *GameController) AiThinking() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.AiThinking()
}

func (gc *GameController) Reset(settings GameSettings) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.game.Reset(settings)
}

func (gc *GameController) StartGame(settings GameSettings) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.game.Reset(settings)
	gc.game.Start()
}

func (gc *GameController) UpdateSettings(update GameSettings, reset bool) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if reset {
		gc.game.Reset(update)
		return
	}
	gc.game.stopPlayers()
	gc.game.settings = update.normalize()
	gc.game.createPlayers()
}

func (gc *GameController) ResetForConfigChange() {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.game.ResetForConfigChange()
}

// Suggest runs a synchronous search for the side to move on a copy of the
// live board. The controller is not locked while the search runs.
func (gc *GameController) Suggest() (hintResult, error) {
	gc.mu.Lock()
	board := gc.game.board.Clone()
	settings := gc.game.settings
	status := gc.game.status
	gc.mu.Unlock()
	if status.Finished() {
		return hintResult{}, ErrGameNotRunning
	}

	color := board.ToMove()
	ai, err := NewAIPlayer(color, settings.weightFor(color), settings.Depth, settings.UseIteration, GetConfig())
	if err != nil {
		return hintResult{}, err
	}
	candidates := ai.Engine().Candidates(board)
	res, err := ai.ChooseMove(board)
	if err != nil {
		return hintResult{}, err
	}
	return hintResult{
		Player:     playerToInt(color),
		Candidates: candidates,
		Best:       res.Move,
		Value:      res.Value,
		Depth:      res.Depth,
		Nodes:      res.Nodes,
		ElapsedMs:  float64(res.Elapsed.Microseconds()) / 1000,
	}, nil
}

type hintResult struct {
	Player     int     `json:"player"`
	Candidates []Move  `json:"candidates"`
	Best       Move    `json:"best"`
	Value      float64 `json:"value"`
	Depth      int     `json:"depth"`
	Nodes      int64   `json:"nodes"`
	ElapsedMs  float64 `json:"elapsed_ms"`
}
