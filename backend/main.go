package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type StatusResponse struct {
	Settings        GameSettingsDTO   `json:"settings"`
	Config          Config            `json:"config"`
	NextPlayer      int               `json:"next_player"`
	Winner          int               `json:"winner"`
	BoardSize       int               `json:"board_size"`
	Status          string            `json:"status"`
	History         []historyEntryDTO `json:"history"`
	WinningLine     []Move            `json:"winning_line"`
	LastMessage     string            `json:"last_message,omitempty"`
	AiThinking      bool              `json:"ai_thinking"`
	TurnStartedAtMs int64             `json:"turn_started_at_ms"`
}

type GameSettingsDTO struct {
	Mode         string   `json:"mode"`
	HumanPlayer  int      `json:"human_player"`
	BlackWeight  *float64 `json:"black_weight,omitempty"`
	WhiteWeight  *float64 `json:"white_weight,omitempty"`
	Depth        *int     `json:"depth,omitempty"`
	UseIteration *bool    `json:"use_iteration,omitempty"`
}

type apiMove struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type historyEntryDTO struct {
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	Player    int     `json:"player"`
	ElapsedMs float64 `json:"elapsed_ms"`
	IsAi      bool    `json:"is_ai"`
	Depth     int     `json:"depth"`
	Score     float64 `json:"score"`
}

type historyPayload struct {
	History []historyEntryDTO `json:"history"`
}

type settingsPayload struct {
	Settings GameSettingsDTO `json:"settings"`
	Config   Config          `json:"config"`
}

type memoCacheStatusResponse struct {
	WarmEntries int     `json:"warm_entries"`
	WarmLimit   int     `json:"warm_limit"`
	Usage       float64 `json:"usage"`
	Persist     bool    `json:"persist"`
	Path        string  `json:"path"`
}

// server bundles what the HTTP handlers need.
type server struct {
	controller   *GameController
	hub          *Hub
	ghostHub     *GhostHub
	analiticsHub *AnaliticsHub
	archive      *GameArchive
}

func main() {
	setupLogging()

	var persistOnce sync.Once
	persistOnShutdown := func(reason string) {
		persistOnce.Do(func() {
			backendLog.Info().Str("reason", reason).Msg("persisting-caches")
			if err := persistWarmMemo(GetConfig()); err != nil {
				backendLog.Error().Err(err).Msg("persist-failed")
			}
		})
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			backendLog.Error().Interface("panic", recovered).Msg("panic recovered in main")
			persistOnShutdown("panic")
		}
	}()

	loadWarmMemo(GetConfig())
	defer persistOnShutdown("exit")

	srv := &server{
		controller:   NewGameController(DefaultGameSettings()),
		hub:          NewHub(),
		ghostHub:     NewGhostHub(),
		analiticsHub: NewAnaliticsHub(),
		archive:      openArchive(GetConfig()),
	}
	if srv.archive != nil {
		defer srv.archive.Close()
	}
	searchBacklogManager.SetAnaliticsHub(srv.analiticsHub)
	srv.wireController()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx.Done())
	go srv.ghostHub.Run(ctx.Done())
	go srv.analiticsHub.Run(ctx.Done())
	go srv.tickLoop(ctx)
	backlog := startSearchBacklogWorkers(ctx, srv.controller)
	enqueueArchivedOpenings(srv.archive)
	if cfg := GetConfig(); cfg.AiWarmupOnStart {
		go runWarmup(cfg.AiWarmupDepth)
	}

	addr := getenv("GOMOKU_ADDR", ":8080")
	httpServer := &http.Server{
		Addr:    addr,
		Handler: newRouter(srv),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	backendLog.Info().Str("addr", addr).Msg("listening")
	var runErr error
	select {
	case <-sigCtx.Done():
		backendLog.Info().Msg("shutdown signal received")
	case err, ok := <-serverErrCh:
		if ok {
			runErr = err
			backendLog.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		backendLog.Error().Err(err).Msg("graceful shutdown failed")
		if closeErr := httpServer.Close(); closeErr != nil && !errors.Is(closeErr, http.ErrServerClosed) {
			backendLog.Error().Err(closeErr).Msg("forced close failed")
		}
	}

	cancel()
	searchBacklogManager.RequestStop()
	_ = backlog.Wait()
	persistOnShutdown("shutdown")
	if runErr != nil {
		backendLog.Error().Err(runErr).Msg("exiting after server error")
	}
}

func openArchive(cfg Config) *GameArchive {
	if !cfg.ArchiveEnabled {
		return nil
	}
	archive, err := OpenGameArchive(cfg.ArchivePath)
	if err != nil {
		archiveLog.Warn().Err(err).Msg("archive disabled")
		return nil
	}
	return archive
}

// wireController connects the live game to the archive, the backlog and the
// websocket streams.
func (s *server) wireController() {
	s.controller.SetGhostPublisher(
		func() bool { return s.ghostHub.HasClients() && GetConfig().GhostMode },
		s.ghostHub.Publish,
	)
	s.controller.SetSearchHook(s.analiticsHub.PublishSearch)
	s.controller.SetFinishedHook(func(rec GameRecord) {
		if len(rec.Moves) >= backlogOpeningPlys {
			if b, err := BoardFromMoves(rec.Moves[:backlogOpeningPlys]); err == nil {
				enqueueSearchBacklogTask(b, "opening")
			}
		}
		if s.archive == nil {
			return
		}
		go func() {
			if _, err := s.archive.Record(rec); err != nil {
				archiveLog.Error().Err(err).Msg("record failed")
			}
		}()
	})
}

func (s *server) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.controller.Tick() {
				s.hub.PublishLatestMove(s.controller)
			}
		}
	}
}

func runWarmup(depth int) int {
	cfg := GetConfig()
	engine, err := NewEngine(PlayerWhite, cfg.AiWeight, cfg)
	if err != nil {
		cacheLog.Error().Err(err).Msg("warmup")
		return 0
	}
	added, err := engine.Warmup(depth)
	if err != nil {
		cacheLog.Error().Err(err).Msg("warmup")
		return 0
	}
	cacheLog.Info().Int("depth", depth).Int("added", added).Int("warm", warmMemo.Len()).Msg("warmup-done")
	return added
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, controllerStatus(s.controller))
	})

	r.Get("/api/board", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s.controller.BoardText()))
	})

	r.Post("/api/start", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Settings GameSettingsDTO `json:"settings"`
		}
		if !decodeBody(w, r, &payload) {
			return
		}
		settings := settingsFromDTO(payload.Settings, DefaultGameSettings())
		searchBacklogManager.RequestStop()
		s.controller.StartGame(settings)
		s.hub.Publish("reset", controllerStatus(s.controller))
		writeJSON(w, http.StatusOK, controllerStatus(s.controller))
	})

	r.Post("/api/stop", func(w http.ResponseWriter, r *http.Request) {
		s.controller.Reset(s.controller.Settings())
		s.hub.Publish("reset", controllerStatus(s.controller))
		writeJSON(w, http.StatusOK, controllerStatus(s.controller))
	})

	r.Post("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Settings *GameSettingsDTO `json:"settings"`
			Config   *Config          `json:"config"`
		}
		if !decodeBody(w, r, &payload) {
			return
		}
		if payload.Config != nil {
			if err := configStore.Update(*payload.Config); err != nil {
				writeError(w, err)
				return
			}
			s.controller.ResetForConfigChange()
		}
		if payload.Settings != nil {
			settings := settingsFromDTO(*payload.Settings, s.controller.Settings())
			s.controller.UpdateSettings(settings, false)
		}
		s.hub.Publish("settings", settingsPayload{
			Settings: controllerSettingsDTO(s.controller.Settings()),
			Config:   GetConfig(),
		})
		writeJSON(w, http.StatusOK, controllerStatus(s.controller))
	})

	r.Post("/api/move", func(w http.ResponseWriter, r *http.Request) {
		var payload apiMove
		if !decodeBody(w, r, &payload) {
			return
		}
		if err := s.controller.ApplyHumanMove(Move{Row: payload.Row, Col: payload.Col}); err != nil {
			writeError(w, err)
			return
		}
		searchBacklogManager.RequestStop()
		enqueueSearchBacklogTask(s.controller.State().Board, "game")
		status := controllerStatus(s.controller)
		s.hub.PublishLatestMove(s.controller)
		writeJSON(w, http.StatusOK, status)
	})

	r.Post("/api/undo", func(w http.ResponseWriter, r *http.Request) {
		if err := s.controller.Undo(); err != nil {
			writeError(w, err)
			return
		}
		s.hub.Publish("reset", controllerStatus(s.controller))
		writeJSON(w, http.StatusOK, controllerStatus(s.controller))
	})

	r.Get("/api/hint", func(w http.ResponseWriter, r *http.Request) {
		hint, err := s.controller.Suggest()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hint)
	})

	r.Get("/api/cache/memo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, memoCacheStatus(GetConfig()))
	})
	r.Delete("/api/cache/memo", func(w http.ResponseWriter, r *http.Request) {
		warmMemo.Clear()
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	})
	r.Post("/api/cache/memo/persist", func(w http.ResponseWriter, r *http.Request) {
		cfg := GetConfig()
		cfg.AiPersistCaches = true
		if err := persistWarmMemo(cfg); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, memoCacheStatus(cfg))
	})
	r.Post("/api/cache/memo/warmup", func(w http.ResponseWriter, r *http.Request) {
		depth := GetConfig().AiWarmupDepth
		if raw := r.URL.Query().Get("depth"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid depth"})
				return
			}
			depth = clamp(parsed, 0, 8)
		}
		added := runWarmup(depth)
		writeJSON(w, http.StatusOK, map[string]any{"depth": depth, "added": added, "warm_entries": warmMemo.Len()})
	})

	r.Get("/api/analitics/queue", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", analiticsDefaultTopBoards)
		writeJSON(w, http.StatusOK, analiticsQueueResponse{
			Queue:        searchBacklogManager.TopAnaliticsQueue(clamp(limit, 0, 100)),
			TotalInQueue: searchBacklogManager.TotalAnaliticsQueue(),
			WarmEntries:  warmMemo.Len(),
		})
	})

	r.Get("/api/games", func(w http.ResponseWriter, r *http.Request) {
		if s.archive == nil {
			writeJSON(w, http.StatusOK, []GameRecord{})
			return
		}
		games, err := s.archive.Recent(clamp(queryInt(r, "limit", 20), 0, 200))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, games)
	})
	r.Delete("/api/games", func(w http.ResponseWriter, r *http.Request) {
		if s.archive == nil {
			writeJSON(w, http.StatusOK, map[string]any{"deleted": 0})
			return
		}
		n, err := s.archive.Clear()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
	})

	r.Get("/ws/", func(w http.ResponseWriter, r *http.Request) {
		serveWS(s.hub, s.controller, w, r)
	})
	r.Get("/ws/ghost", func(w http.ResponseWriter, r *http.Request) {
		serveGhostWS(s.ghostHub, w, r)
	})
	r.Get("/ws/analitics", func(w http.ResponseWriter, r *http.Request) {
		serveAnaliticsWS(s.analiticsHub, w, r)
	})
	return r
}

func controllerStatus(controller *GameController) StatusResponse {
	state := controller.State()
	return StatusResponse{
		Settings:        controllerSettingsDTO(controller.Settings()),
		Config:          GetConfig(),
		NextPlayer:      playerToInt(state.ToMove),
		Winner:          winnerFromStatus(state.Status),
		BoardSize:       BoardSize,
		Status:          statusToString(state.Status),
		History:         historyToDTO(controller.History()),
		WinningLine:     state.WinningLine,
		LastMessage:     state.LastMessage,
		AiThinking:      controller.AiThinking(),
		TurnStartedAtMs: controller.CurrentTurnStartedAtMs(),
	}
}

func memoCacheStatus(cfg Config) memoCacheStatusResponse {
	entries := warmMemo.Len()
	usage := 0.0
	if cfg.AiWarmMaxEntries > 0 {
		usage = float64(entries) / float64(cfg.AiWarmMaxEntries)
	}
	return memoCacheStatusResponse{
		WarmEntries: entries,
		WarmLimit:   cfg.AiWarmMaxEntries,
		Usage:       usage,
		Persist:     cfg.AiPersistCaches,
		Path:        resolveCachePath(cfg.AiMemoPersistPath),
	}
}

// seatsByMode maps an API mode to the black and white seat types. For
// ai_vs_human the human takes black unless human_player is 2.
var seatsByMode = map[string][2]PlayerType{
	"ai_vs_ai":       {PlayerAI, PlayerAI},
	"human_vs_human": {PlayerHuman, PlayerHuman},
	"ai_vs_human":    {PlayerHuman, PlayerAI},
}

func settingsFromDTO(dto GameSettingsDTO, base GameSettings) GameSettings {
	settings := base
	if seats, ok := seatsByMode[dto.Mode]; ok {
		if dto.Mode == "ai_vs_human" && dto.HumanPlayer == 2 {
			seats[0], seats[1] = seats[1], seats[0]
		}
		settings.BlackType, settings.WhiteType = seats[0], seats[1]
	}
	if dto.BlackWeight != nil {
		settings.BlackWeight = *dto.BlackWeight
	}
	if dto.WhiteWeight != nil {
		settings.WhiteWeight = *dto.WhiteWeight
	}
	if dto.Depth != nil {
		settings.Depth = *dto.Depth
	}
	if dto.UseIteration != nil {
		settings.UseIteration = *dto.UseIteration
	}
	return settings.normalize()
}

func controllerSettingsDTO(settings GameSettings) GameSettingsDTO {
	humanPlayer := 0
	switch {
	case settings.BlackType == PlayerHuman:
		humanPlayer = 1
	case settings.WhiteType == PlayerHuman:
		humanPlayer = 2
	}
	return GameSettingsDTO{
		Mode:         settings.Mode(),
		HumanPlayer:  humanPlayer,
		BlackWeight:  &settings.BlackWeight,
		WhiteWeight:  &settings.WhiteWeight,
		Depth:        &settings.Depth,
		UseIteration: &settings.UseIteration,
	}
}

// Wire encoding: 0 empty or nobody, 1 black, 2 white.
func cellToInt(cell Cell) int {
	switch cell {
	case CellBlack:
		return 1
	case CellWhite:
		return 2
	}
	return 0
}

func playerToInt(player PlayerColor) int {
	if player == PlayerBlack {
		return 1
	}
	return 2
}

func winnerFromStatus(status GameStatus) int {
	switch status {
	case StatusBlackWon:
		return 1
	case StatusWhiteWon:
		return 2
	}
	return 0
}

var statusNames = map[GameStatus]string{
	StatusNotStarted: "not_started",
	StatusRunning:    "running",
	StatusBlackWon:   "black_won",
	StatusWhiteWon:   "white_won",
	StatusDraw:       "draw",
}

func statusToString(status GameStatus) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return "running"
}

func historyToDTO(history MoveHistory) []historyEntryDTO {
	entries := history.All()
	out := make([]historyEntryDTO, len(entries))
	for i, entry := range entries {
		out[i] = historyEntryToDTO(entry)
	}
	return out
}

func historyEntryToDTO(entry HistoryEntry) historyEntryDTO {
	return historyEntryDTO{
		Row:       entry.Move.Row,
		Col:       entry.Move.Col,
		Player:    playerToInt(entry.Player),
		ElapsedMs: entry.ElapsedMs,
		IsAi:      entry.IsAi,
		Depth:     entry.Depth,
		Score:     entry.Score,
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// decodeBody reads a JSON request body into dst, answering 400 when it is
// malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrGameNotRunning), errors.Is(err, ErrNotHumanTurn), errors.Is(err, ErrCellOccupied):
		status = http.StatusConflict
	case errors.Is(err, ErrOutOfRange), errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrNoHistory):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
