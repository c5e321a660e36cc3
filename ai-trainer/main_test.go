package main

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testTrainer(baseURL string) *trainer {
	return &trainer{
		client:           &http.Client{Timeout: 2 * time.Second},
		baseURL:          baseURL,
		pollInterval:     time.Millisecond,
		log:              zerolog.Nop(),
		mode:             "cache",
		gameTimeout:      time.Second,
		gameDepth:        1,
		seedWeights:      []float64{0.6, 1.0},
		populationSize:   4,
		eliteCount:       2,
		mutationStrength: 0.2,
		eloK:             20,
	}
}

func TestUpdateEloIsZeroSum(t *testing.T) {
	a := contender{ID: "a", Elo: 1500}
	b := contender{ID: "b", Elo: 1600}
	updateElo(&a, &b, 1, 20)
	if a.Elo <= 1500 || b.Elo >= 1600 {
		t.Fatalf("expected the winner to gain, got a=%.2f b=%.2f", a.Elo, b.Elo)
	}
	if math.Abs(a.Elo+b.Elo-3100) > 1e-9 {
		t.Fatalf("expected elo to be conserved, got %.6f", a.Elo+b.Elo)
	}
}

func TestScoreForFirst(t *testing.T) {
	cases := []struct {
		winner     int
		firstBlack bool
		want       float64
	}{
		{1, true, 1},
		{1, false, 0},
		{2, false, 1},
		{2, true, 0},
		{0, true, 0.5},
	}
	for _, tc := range cases {
		if got := scoreForFirst(tc.winner, tc.firstBlack); got != tc.want {
			t.Fatalf("winner %d firstBlack %v: expected %.1f, got %.1f", tc.winner, tc.firstBlack, tc.want, got)
		}
	}
}

func TestOpeningSuiteIsDeterministicAndDistinct(t *testing.T) {
	a := buildOpeningSuite(15, 5, 3, 41)
	b := buildOpeningSuite(15, 5, 3, 41)
	if len(a) != 5 {
		t.Fatalf("expected 5 openings, got %d", len(a))
	}
	for i := range a {
		if len(a[i]) != 3 {
			t.Fatalf("expected 3 plies, got %v", a[i])
		}
		seen := map[openingMove]bool{}
		for j, m := range a[i] {
			if m != b[i][j] {
				t.Fatalf("same salt produced different openings: %v vs %v", a[i], b[i])
			}
			if seen[m] {
				t.Fatalf("opening repeats a cell: %v", a[i])
			}
			seen[m] = true
			if m.Row < 5 || m.Row > 9 || m.Col < 5 || m.Col > 9 {
				t.Fatalf("opening move %v too far from the center", m)
			}
		}
	}
}

func TestPopulationKeepsWeightsInRange(t *testing.T) {
	tr := testTrainer("")
	pop := tr.initialPopulation()
	if len(pop) != 4 || pop[0].Weight != 0.6 || pop[1].Weight != 1.0 {
		t.Fatalf("unexpected initial population %+v", pop)
	}
	pop[2].Elo = 1600
	sortContendersByElo(pop)
	next := tr.nextGeneration(pop, 1)
	if len(next) != 4 || next[0].ID != pop[0].ID || next[1].ID != pop[1].ID {
		t.Fatalf("expected the elite to survive, got %+v", next)
	}
	for _, c := range next {
		if c.Elo != baseElo || c.Weight < minAIWeight || c.Weight > maxAIWeight {
			t.Fatalf("unexpected contender %+v", c)
		}
	}
}

func TestParseWeightsSkipsInvalid(t *testing.T) {
	got := parseWeights("0.5, x, 3, 1.2,")
	if len(got) != 2 || got[0] != 0.5 || got[1] != 1.2 {
		t.Fatalf("unexpected weights %v", got)
	}
}

type fakeBackend struct {
	mu       sync.Mutex
	starts   []string
	moves    int
	persists int
	warm     int
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/start", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.starts = append(f.starts, string(body))
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	mux.HandleFunc("/api/move", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.moves++
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "black_won", Winner: 1, BoardSize: 15})
	})
	mux.HandleFunc("/api/analitics/queue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, queueResponse{})
	})
	mux.HandleFunc("/api/cache/memo", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, memoStatusResponse{WarmEntries: f.warm, WarmLimit: 10})
	})
	mux.HandleFunc("/api/cache/memo/persist", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.persists++
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, memoStatusResponse{WarmEntries: 3, WarmLimit: 10})
	})
	return mux
}

func TestPlayHeadToHeadSwapsColours(t *testing.T) {
	backend := &fakeBackend{}
	ts := httptest.NewServer(backend.handler())
	defer ts.Close()

	tr := testTrainer(ts.URL)
	opening := []openingMove{{7, 7}, {7, 8}}
	score, err := tr.playHeadToHead(context.Background(), 0.6, 1.0, opening)
	if err != nil {
		t.Fatalf("head to head: %v", err)
	}
	if score != 0.5 {
		t.Fatalf("black wins both games so the pair splits, got %.2f", score)
	}
	if len(backend.starts) != 2 || backend.moves != 4 {
		t.Fatalf("expected 2 seeded games, got %d starts and %d moves", len(backend.starts), backend.moves)
	}
}

func TestCacheTrainingStopsWhenNoBoardIsQueued(t *testing.T) {
	backend := &fakeBackend{}
	ts := httptest.NewServer(backend.handler())
	defer ts.Close()

	tr := testTrainer(ts.URL)
	if err := tr.runCacheTraining(context.Background()); err != nil {
		t.Fatalf("cache training: %v", err)
	}
	if len(backend.starts) != 1 || backend.persists != 1 {
		t.Fatalf("expected one game then a persist, got %d starts and %d persists", len(backend.starts), backend.persists)
	}
	if !strings.Contains(backend.starts[0], `"ai_vs_ai"`) {
		t.Fatalf("expected an ai_vs_ai game, got %s", backend.starts[0])
	}
	if got := tr.getStatus().GamesPlayed; got != 1 {
		t.Fatalf("expected 1 game played, got %d", got)
	}
}

func TestCacheTrainingPersistsFullMemo(t *testing.T) {
	backend := &fakeBackend{warm: 10}
	ts := httptest.NewServer(backend.handler())
	defer ts.Close()

	tr := testTrainer(ts.URL)
	if err := tr.runCacheTraining(context.Background()); err != nil {
		t.Fatalf("cache training: %v", err)
	}
	if len(backend.starts) != 0 || backend.persists != 1 {
		t.Fatalf("a full memo is persisted without playing, got %d starts", len(backend.starts))
	}
}

func TestStatusAPI(t *testing.T) {
	tr := testTrainer("http://127.0.0.1:1")
	ts := httptest.NewServer(tr.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/trainer/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status trainerStatus
	err = json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if err != nil || status.Running {
		t.Fatalf("expected an idle trainer, got %+v (%v)", status, err)
	}

	resp, err = http.Post(ts.URL+"/api/trainer/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stopping an idle trainer should conflict, got %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/trainer/start", "application/json", strings.NewReader(`{"mode":"chess"}`))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unknown mode should be rejected, got %d", resp.StatusCode)
	}
}
