package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"lukechampine.com/frand"
)

const (
	baseElo      = 1500.0
	minAIWeight  = 0.05
	maxAIWeight  = 2.0
	defaultDepth = 2
)

type trainer struct {
	client       *http.Client
	baseURL      string
	pollInterval time.Duration
	log          zerolog.Logger
	mode         string
	apiAddr      string
	outputDir    string
	totalBoards  int

	gameTimeout      time.Duration
	gameDepth        int
	seedWeights      []float64
	populationSize   int
	eliteCount       int
	mutationStrength float64
	openings         int
	openingPlies     int
	eloK             float64

	statusMu sync.RWMutex
	status   trainerStatus
	jobMu    sync.Mutex
	job      *trainingJob
}

type statusResponse struct {
	Status    string            `json:"status"`
	Winner    int               `json:"winner"`
	History   []json.RawMessage `json:"history"`
	BoardSize int               `json:"board_size"`
}

type queueResponse struct {
	TotalInQueue int `json:"total_in_queue"`
	WarmEntries  int `json:"warm_entries"`
}

type memoStatusResponse struct {
	WarmEntries int     `json:"warm_entries"`
	WarmLimit   int     `json:"warm_limit"`
	Usage       float64 `json:"usage"`
}

type trainerStatus struct {
	Running             bool              `json:"running"`
	Mode                string            `json:"mode"`
	Phase               string            `json:"phase"`
	Message             string            `json:"message"`
	StartedAt           string            `json:"started_at"`
	UpdatedAt           string            `json:"updated_at"`
	GamesPlayed         int               `json:"games_played"`
	BoardsQueued        int               `json:"boards_queued"`
	WarmEntries         int               `json:"warm_entries"`
	Generation          int               `json:"generation"`
	GenerationStartedAt string            `json:"generation_started_at,omitempty"`
	RoundMatchesTotal   int               `json:"round_matches_total"`
	EtaSeconds          int               `json:"eta_seconds"`
	CurrentMatch        *trainerMatch     `json:"current_match,omitempty"`
	Standings           []trainerStanding `json:"standings,omitempty"`
	Champion            *trainerStanding  `json:"champion,omitempty"`
}

type trainerMatch struct {
	BlackID      string  `json:"black_id"`
	WhiteID      string  `json:"white_id"`
	BlackWeight  float64 `json:"black_weight"`
	WhiteWeight  float64 `json:"white_weight"`
	OpeningIndex int     `json:"opening_index"`
}

type trainerStanding struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
	Elo    float64 `json:"elo"`
}

type openingMove struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type contender struct {
	ID     string
	Weight float64
	Elo    float64
}

func main() {
	logDir := getenv("TRAINER_LOG_DIR", "/logs")
	logger, closeLog, err := buildLogger(filepath.Join(logDir, "AITrainer.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	t := newTrainerFromEnv(logger)
	t.outputDir = logDir

	t.log.Info().
		Str("backend", t.baseURL).
		Str("mode", t.mode).
		Dur("poll_interval", t.pollInterval).
		Msg("trainer-started")
	srv := t.startStatusAPI()

	if autostart := getenv("TRAINER_AUTOSTART_MODE", ""); autostart != "" {
		startMode := autostart
		if startMode == "1" || startMode == "true" || startMode == "yes" {
			startMode = t.mode
		}
		if err := t.startTraining(startMode); err != nil {
			t.log.Warn().Err(err).Msg("autostart-failed")
		}
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	<-sigCtx.Done()
	_ = t.stopTraining("shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	t.log.Info().Msg("trainer-stopping")
}

func newTrainerFromEnv(logger zerolog.Logger) *trainer {
	mode := getenv("TRAINER_MODE", "cache")
	populationSize := getenvInt("WEIGHT_POPULATION_SIZE", 6)
	if populationSize < 2 {
		populationSize = 2
	}
	eliteCount := getenvInt("WEIGHT_ELITE_COUNT", 2)
	if eliteCount >= populationSize {
		eliteCount = populationSize - 1
	}
	mutation := getenvFloat("WEIGHT_MUTATION_STRENGTH", 0.15)
	if mutation <= 0 {
		mutation = 0.15
	}
	eloK := getenvFloat("WEIGHT_ELO_K", 20)
	if eloK <= 0 {
		eloK = 20
	}
	now := time.Now().UTC().Format(time.RFC3339)
	return &trainer{
		client:           &http.Client{Timeout: 10 * time.Second},
		baseURL:          strings.TrimRight(getenv("BACKEND_URL", "http://backend:8080"), "/"),
		pollInterval:     time.Duration(getenvInt("POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		log:              logger,
		mode:             mode,
		apiAddr:          getenv("TRAINER_API_ADDR", ":8090"),
		outputDir:        "/logs",
		gameTimeout:      time.Duration(getenvInt("TRAINER_GAME_TIMEOUT_SEC", 180)) * time.Second,
		gameDepth:        getenvInt("TRAINER_GAME_DEPTH", defaultDepth),
		seedWeights:      parseWeights(getenv("WEIGHT_SEEDS", "0.6,0.8,1.0")),
		populationSize:   populationSize,
		eliteCount:       max(eliteCount, 1),
		mutationStrength: mutation,
		openings:         max(getenvInt("WEIGHT_OPENINGS", 4), 1),
		openingPlies:     max(getenvInt("WEIGHT_OPENING_PLIES", 2), 1),
		eloK:             eloK,
		status: trainerStatus{
			Mode:      mode,
			Phase:     "idle",
			Message:   "service ready",
			StartedAt: now,
			UpdatedAt: now,
		},
	}
}

func buildLogger(path string) (zerolog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Logger{}, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	logger := zerolog.New(zerolog.MultiLevelWriter(console, f)).
		With().Timestamp().Str("component", "trainer").Logger()
	return logger, func() { _ = f.Close() }, nil
}

func (t *trainer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/api/trainer/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": t.getStatus().Running})
	})
	r.Get("/api/trainer/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, t.getStatus())
	})
	r.Post("/api/trainer/start", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Mode string `json:"mode"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if err := t.startTraining(payload.Mode); err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, t.getStatus())
	})
	r.Post("/api/trainer/stop", func(w http.ResponseWriter, r *http.Request) {
		if err := t.stopTraining("requested via api"); err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, t.getStatus())
	})
	return r
}

func (t *trainer) startStatusAPI() *http.Server {
	server := &http.Server{Addr: t.apiAddr, Handler: t.router()}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error().Err(err).Msg("status-api")
		}
	}()
	return server
}

func (t *trainer) getStatus() trainerStatus {
	t.statusMu.RLock()
	defer t.statusMu.RUnlock()
	return t.status
}

func (t *trainer) updateStatus(mutator func(*trainerStatus)) {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	mutator(&t.status)
	t.status.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

var (
	errAlreadyRunning = errors.New("training already running")
	errNotRunning     = errors.New("no running training job")
)

// trainingJob is one background run. finished closes after the status has
// been reset.
type trainingJob struct {
	mode     string
	cancel   context.CancelFunc
	finished chan struct{}
}

func (t *trainer) startTraining(mode string) error {
	if mode == "" {
		mode = t.mode
	}
	if mode != "cache" && mode != "weight" {
		return fmt.Errorf("unknown mode %q", mode)
	}

	t.jobMu.Lock()
	defer t.jobMu.Unlock()
	if t.job != nil {
		return errAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	job := &trainingJob{mode: mode, cancel: cancel, finished: make(chan struct{})}
	t.job = job
	t.updateStatus(func(s *trainerStatus) {
		*s = trainerStatus{
			Running:   true,
			Mode:      mode,
			Phase:     "starting",
			Message:   "training starting",
			StartedAt: s.StartedAt,
		}
	})
	go t.runJob(ctx, job)
	return nil
}

func (t *trainer) runJob(ctx context.Context, job *trainingJob) {
	defer close(job.finished)
	defer job.cancel()

	err := t.waitBackendReady(ctx)
	if err == nil {
		err = t.runMode(ctx, job.mode)
	}
	failed := err != nil && !errors.Is(err, context.Canceled)
	if failed {
		t.log.Error().Err(err).Str("mode", job.mode).Msg("training-failed")
	}
	t.updateStatus(func(s *trainerStatus) {
		s.Running = false
		s.CurrentMatch = nil
		s.Phase, s.Message = "idle", "service ready"
		if failed {
			s.Phase, s.Message = "error", err.Error()
		}
	})

	t.jobMu.Lock()
	if t.job == job {
		t.job = nil
	}
	t.jobMu.Unlock()
}

// stopTraining cancels the running job and waits for it to wind down.
func (t *trainer) stopTraining(reason string) error {
	t.jobMu.Lock()
	job := t.job
	t.jobMu.Unlock()
	if job == nil {
		return errNotRunning
	}
	t.log.Info().Str("reason", reason).Str("mode", job.mode).Msg("stopping-training")
	job.cancel()
	<-job.finished
	return nil
}

func (t *trainer) runMode(ctx context.Context, mode string) error {
	if mode == "weight" {
		return t.runWeightTraining(ctx)
	}
	return t.runCacheTraining(ctx)
}

// runCacheTraining plays AI-vs-AI games so the backend's backlog fills the
// warm memo, and persists it after each game. It stops once the memo is full
// or a game adds no new position.
func (t *trainer) runCacheTraining(ctx context.Context) error {
	t.updateStatus(func(s *trainerStatus) {
		s.Phase = "running"
		s.Message = "cache training running"
		s.Standings = nil
		s.Champion = nil
	})
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		full, err := t.memoIsFull()
		if err != nil {
			return err
		}
		if full {
			t.log.Info().Msg("warm memo is full, stopping")
			return t.persistMemo()
		}
		queueBefore, err := t.getQueue()
		if err != nil {
			return err
		}

		if err := t.startAIVsAIGame(); err != nil {
			return err
		}
		t.updateStatus(func(s *trainerStatus) { s.GamesPlayed++ })
		t.log.Info().Msg("game started")
		if _, err := t.waitGameOver(ctx); err != nil {
			return err
		}

		queueAfter, err := t.getQueue()
		if err != nil {
			return err
		}
		newBoards := max(queueAfter.TotalInQueue-queueBefore.TotalInQueue, 0)
		t.totalBoards += newBoards

		if err := t.waitQueueDrained(ctx); err != nil {
			return err
		}
		if err := t.persistMemo(); err != nil {
			return err
		}
		t.log.Info().Int("new_boards", newBoards).Int("total_boards", t.totalBoards).Msg("game analysed")
		t.updateStatus(func(s *trainerStatus) { s.BoardsQueued = t.totalBoards })
		if newBoards == 0 {
			t.log.Info().Msg("last game queued no new board, stopping")
			return nil
		}
	}
}

func (t *trainer) waitQueueDrained(ctx context.Context) error {
	lastLogged := -1
	for {
		queue, err := t.getQueue()
		if err != nil {
			return err
		}
		t.updateStatus(func(s *trainerStatus) { s.WarmEntries = queue.WarmEntries })
		if queue.TotalInQueue == 0 {
			return nil
		}
		if queue.TotalInQueue != lastLogged {
			t.log.Info().Int("queued", queue.TotalInQueue).Msg("waiting for backlog")
			lastLogged = queue.TotalInQueue
		}
		if !sleepWithContext(ctx, t.pollInterval) {
			return ctx.Err()
		}
	}
}

func (t *trainer) waitGameOver(ctx context.Context) (statusResponse, error) {
	deadline := time.Now().Add(t.gameTimeout)
	for {
		if ctx.Err() != nil {
			return statusResponse{}, ctx.Err()
		}
		status, err := t.fetchStatus()
		if err != nil {
			return statusResponse{}, err
		}
		if status.Status != "running" {
			return status, nil
		}
		if t.gameTimeout > 0 && time.Now().After(deadline) {
			_ = t.stopGame()
			return statusResponse{}, fmt.Errorf("game timeout after %s", t.gameTimeout)
		}
		if !sleepWithContext(ctx, t.pollInterval) {
			return statusResponse{}, ctx.Err()
		}
	}
}

// runWeightTraining ranks AI weights by Elo. Each generation plays a round
// robin over seeded openings, then keeps the elite and mutates the rest.
func (t *trainer) runWeightTraining(ctx context.Context) error {
	boardSize := 15
	if st, err := t.fetchStatus(); err == nil && st.BoardSize > 0 {
		boardSize = st.BoardSize
	}
	openings := buildOpeningSuite(boardSize, t.openings, t.openingPlies, 41)
	population := t.initialPopulation()

	t.updateStatus(func(s *trainerStatus) {
		s.Phase = "running"
		s.Message = "weight training running"
		s.Generation = 0
		s.Standings = toStandings(population, 8)
	})

	for generation := 1; ; generation++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		roundTotal := len(population) * (len(population) - 1) / 2 * len(openings)
		roundStart := time.Now().UTC()
		t.updateStatus(func(s *trainerStatus) {
			s.Generation = generation
			s.GamesPlayed = 0
			s.GenerationStartedAt = roundStart.Format(time.RFC3339)
			s.RoundMatchesTotal = roundTotal
			s.EtaSeconds = 0
		})
		if err := t.runRound(ctx, population, openings, roundStart, roundTotal); err != nil {
			return err
		}
		sortContendersByElo(population)
		champion := toStandings(population[:1], 1)[0]
		t.log.Info().
			Int("generation", generation).
			Str("champion", champion.ID).
			Float64("weight", champion.Weight).
			Float64("elo", champion.Elo).
			Msg("generation done")
		if err := t.writeStandings(population); err != nil {
			t.log.Warn().Err(err).Msg("standings-not-written")
		}
		t.updateStatus(func(s *trainerStatus) {
			s.CurrentMatch = nil
			s.Champion = &champion
			s.Standings = toStandings(population, 8)
		})
		population = t.nextGeneration(population, generation)
	}
}

func (t *trainer) runRound(ctx context.Context, population []contender, openings [][]openingMove, roundStart time.Time, roundTotal int) error {
	games := 0
	for i := 0; i < len(population); i++ {
		for j := i + 1; j < len(population); j++ {
			for openingIdx, opening := range openings {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				t.updateStatus(func(s *trainerStatus) {
					s.CurrentMatch = &trainerMatch{
						BlackID:      population[i].ID,
						WhiteID:      population[j].ID,
						BlackWeight:  population[i].Weight,
						WhiteWeight:  population[j].Weight,
						OpeningIndex: openingIdx,
					}
				})
				result, err := t.playHeadToHead(ctx, population[i].Weight, population[j].Weight, opening)
				if err != nil {
					return err
				}
				updateElo(&population[i], &population[j], result, t.eloK)
				games++
				ranked := append([]contender(nil), population...)
				sortContendersByElo(ranked)
				t.updateStatus(func(s *trainerStatus) {
					s.GamesPlayed = games
					s.Standings = toStandings(ranked, 8)
					s.EtaSeconds = etaSeconds(time.Since(roundStart), games, roundTotal)
				})
				t.log.Debug().
					Str("black", population[i].ID).
					Str("white", population[j].ID).
					Float64("result", result).
					Int("game", games).
					Msg("match")
			}
		}
	}
	return nil
}

// playHeadToHead plays opening twice with colours swapped and returns the
// score of first in [0,1].
func (t *trainer) playHeadToHead(ctx context.Context, first, second float64, opening []openingMove) (float64, error) {
	points := 0.0
	for _, firstBlack := range []bool{true, false} {
		black, white := first, second
		if !firstBlack {
			black, white = second, first
		}
		if err := t.startSeededGame(opening, black, white); err != nil {
			return 0, err
		}
		status, err := t.waitGameOver(ctx)
		if err != nil {
			return 0, err
		}
		points += scoreForFirst(status.Winner, firstBlack)
	}
	return points / 2, nil
}

func scoreForFirst(winner int, firstBlack bool) float64 {
	switch {
	case winner == 1 && firstBlack, winner == 2 && !firstBlack:
		return 1
	case winner == 1 || winner == 2:
		return 0
	default:
		return 0.5
	}
}

func (t *trainer) startSeededGame(opening []openingMove, blackWeight, whiteWeight float64) error {
	if err := t.postJSON("/api/start", map[string]any{
		"settings": map[string]any{"mode": "human_vs_human"},
	}, nil); err != nil {
		return err
	}
	for _, move := range opening {
		if err := t.postJSON("/api/move", move, nil); err != nil {
			return err
		}
	}
	return t.postJSON("/api/settings", map[string]any{
		"settings": map[string]any{
			"mode":          "ai_vs_ai",
			"black_weight":  blackWeight,
			"white_weight":  whiteWeight,
			"depth":         t.gameDepth,
			"use_iteration": false,
		},
	}, nil)
}

func (t *trainer) startAIVsAIGame() error {
	return t.postJSON("/api/start", map[string]any{
		"settings": map[string]any{"mode": "ai_vs_ai", "depth": t.gameDepth},
	}, nil)
}

func (t *trainer) stopGame() error {
	return t.postJSON("/api/stop", map[string]any{}, nil)
}

func (t *trainer) fetchStatus() (statusResponse, error) {
	var status statusResponse
	err := t.getJSON("/api/status", &status)
	return status, err
}

func (t *trainer) getQueue() (queueResponse, error) {
	var queue queueResponse
	err := t.getJSON("/api/analitics/queue?limit=0", &queue)
	return queue, err
}

func (t *trainer) memoIsFull() (bool, error) {
	var memo memoStatusResponse
	if err := t.getJSON("/api/cache/memo", &memo); err != nil {
		return false, err
	}
	t.updateStatus(func(s *trainerStatus) { s.WarmEntries = memo.WarmEntries })
	return memo.WarmLimit > 0 && memo.WarmEntries >= memo.WarmLimit, nil
}

func (t *trainer) persistMemo() error {
	var memo memoStatusResponse
	if err := t.postJSON("/api/cache/memo/persist", map[string]any{}, &memo); err != nil {
		return err
	}
	t.log.Info().Int("warm_entries", memo.WarmEntries).Float64("usage", memo.Usage).Msg("memo persisted")
	return nil
}

// buildOpeningSuite returns count distinct-cell openings near the center.
// The same salt always yields the same suite.
func buildOpeningSuite(boardSize, count, plies int, salt uint64) [][]openingMove {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], uint64(boardSize*97+plies*13)+salt)
	rng := frand.NewCustom(seed[:], 1024, 12)
	center := boardSize / 2
	offsets := []openingMove{
		{0, 0}, {1, 0}, {0, 1}, {-1, 0}, {0, -1}, {1, 1}, {-1, -1}, {1, -1}, {-1, 1}, {2, 0}, {0, 2},
	}
	plies = min(plies, len(offsets))
	suite := make([][]openingMove, 0, count)
	for i := 0; i < count; i++ {
		used := map[openingMove]bool{}
		opening := make([]openingMove, 0, plies)
		for len(opening) < plies {
			off := offsets[rng.Intn(len(offsets))]
			m := openingMove{Row: center + off.Row, Col: center + off.Col}
			if m.Row < 0 || m.Col < 0 || m.Row >= boardSize || m.Col >= boardSize || used[m] {
				continue
			}
			used[m] = true
			opening = append(opening, m)
		}
		suite = append(suite, opening)
	}
	return suite
}

func (t *trainer) initialPopulation() []contender {
	pop := make([]contender, 0, t.populationSize)
	for i, w := range t.seedWeights {
		if len(pop) == t.populationSize {
			break
		}
		pop = append(pop, contender{ID: fmt.Sprintf("seed-%d", i), Weight: w, Elo: baseElo})
	}
	if len(pop) == 0 {
		pop = append(pop, contender{ID: "seed-0", Weight: 0.8, Elo: baseElo})
	}
	for len(pop) < t.populationSize {
		parent := pop[frand.Intn(len(pop))]
		pop = append(pop, contender{ID: fmt.Sprintf("mut-%d", len(pop)), Weight: t.mutateWeight(parent.Weight), Elo: baseElo})
	}
	return pop
}

// nextGeneration keeps the elite of ranked and refills with mutations of
// them. Elo restarts for everyone.
func (t *trainer) nextGeneration(ranked []contender, generation int) []contender {
	elite := ranked[:min(t.eliteCount, len(ranked))]
	next := make([]contender, 0, t.populationSize)
	for _, c := range elite {
		next = append(next, contender{ID: c.ID, Weight: c.Weight, Elo: baseElo})
	}
	for len(next) < t.populationSize {
		parent := elite[frand.Intn(len(elite))]
		next = append(next, contender{
			ID:     fmt.Sprintf("g%d-mut-%d", generation, len(next)),
			Weight: t.mutateWeight(parent.Weight),
			Elo:    baseElo,
		})
	}
	return next
}

func (t *trainer) mutateWeight(w float64) float64 {
	factor := 1 + (frand.Float64()*2-1)*t.mutationStrength
	next := math.Round(w*factor*1000) / 1000
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return w
	}
	return math.Min(math.Max(next, minAIWeight), maxAIWeight)
}

func updateElo(a, b *contender, resultForA, k float64) {
	expA := 1.0 / (1.0 + math.Pow(10, (b.Elo-a.Elo)/400.0))
	expB := 1.0 / (1.0 + math.Pow(10, (a.Elo-b.Elo)/400.0))
	a.Elo += k * (resultForA - expA)
	b.Elo += k * ((1.0 - resultForA) - expB)
}

func sortContendersByElo(list []contender) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Elo > list[j].Elo })
}

func toStandings(list []contender, limit int) []trainerStanding {
	out := make([]trainerStanding, 0, min(len(list), limit))
	for i := 0; i < len(list) && i < limit; i++ {
		out = append(out, trainerStanding{ID: list[i].ID, Weight: list[i].Weight, Elo: list[i].Elo})
	}
	return out
}

func etaSeconds(elapsed time.Duration, done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	avg := elapsed.Seconds() / float64(done)
	return int(math.Round(avg * float64(max(total-done, 0))))
}

func (t *trainer) writeStandings(population []contender) error {
	if err := os.MkdirAll(t.outputDir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(toStandings(population, len(population)), "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	path := filepath.Join(t.outputDir, "weight_standings.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (t *trainer) waitBackendReady(ctx context.Context) error {
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var pong map[string]bool
		if err := t.getJSON("/api/ping", &pong); err == nil {
			return nil
		}
		if !sleepWithContext(ctx, time.Second) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("backend %s not ready after 60s", t.baseURL)
}

func (t *trainer) getJSON(path string, out any) error {
	return t.call(http.MethodGet, path, nil, out)
}

func (t *trainer) postJSON(path string, payload any, out any) error {
	return t.call(http.MethodPost, path, payload, out)
}

// call sends payload, when non-nil, as JSON and decodes a 200 reply into out.
func (t *trainer) call(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, t.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(detail))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func parseWeights(raw string) []float64 {
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		w, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || w < minAIWeight || w > maxAIWeight {
			continue
		}
		out = append(out, w)
	}
	return out
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return parsed
}
