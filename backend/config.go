package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/exp/constraints"
)

type Config struct {
	GhostMode          bool    `json:"ghost_mode"`
	AiWeight           float64 `json:"ai_weight"`
	AiDepth            int     `json:"ai_depth"`
	AiUseIteration     bool    `json:"ai_use_iteration"`
	AiMaxCandidates    int     `json:"ai_max_candidates"`
	AiSearchCandidates int     `json:"ai_search_candidates"`
	AiRootWorkers      int     `json:"ai_root_workers"`
	AiMemoMaxEntries   int     `json:"ai_memo_max_entries"`
	AiWarmMaxEntries   int     `json:"ai_warm_max_entries"`
	AiPersistCaches    bool    `json:"ai_persist_caches"`
	AiMemoPersistPath  string  `json:"ai_memo_persist_path"`
	AiWarmupOnStart    bool    `json:"ai_warmup_on_start"`
	AiWarmupDepth      int     `json:"ai_warmup_depth"`
	AiLogSearchStats   bool    `json:"ai_log_search_stats"`
	AiQueueEnabled     bool    `json:"ai_enable_queue"`
	AiQueueWorkers     int     `json:"ai_queue_workers"`
	AiQueueDepth       int     `json:"ai_queue_depth"`
	AiQueueOpenings    int     `json:"ai_queue_openings"`
	ArchiveEnabled     bool    `json:"archive_enabled"`
	ArchivePath        string  `json:"archive_path"`
}

type ConfigStore struct {
	mu     sync.RWMutex
	config Config
}

func DefaultConfig() Config {
	return Config{
		GhostMode:      false,
		AiWeight:       0.8,
		AiDepth:        0, // 0 picks the depth from the stone count
		AiUseIteration: true,

		AiMaxCandidates:    20,
		AiSearchCandidates: 10,
		AiRootWorkers:      1,

		// One memo entry carries a full score table (~7KB).
		AiMemoMaxEntries:  2048,
		AiWarmMaxEntries:  4096,
		AiPersistCaches:   true,
		AiMemoPersistPath: "board_memo.gob",
		AiWarmupOnStart:   false,
		AiWarmupDepth:     4,

		AiLogSearchStats: false,

		AiQueueEnabled:  true,
		AiQueueWorkers:  1,
		AiQueueDepth:    4,
		AiQueueOpenings: 8,

		ArchiveEnabled: true,
		ArchivePath:    getenv("GOMOKU_DB_PATH", "games.db"),
	}
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.AiWeight < 0 || c.AiWeight > 2 {
		return fmt.Errorf("ai_weight %.2f not in [0,2]: %w", c.AiWeight, ErrInvalidConfig)
	}
	if c.AiDepth < 0 {
		return fmt.Errorf("ai_depth %d: %w", c.AiDepth, ErrInvalidConfig)
	}
	if c.AiMaxCandidates < 1 || c.AiSearchCandidates < 1 {
		return fmt.Errorf("candidate caps must be positive: %w", ErrInvalidConfig)
	}
	if c.AiMemoMaxEntries < 0 || c.AiWarmMaxEntries < 0 {
		return fmt.Errorf("memo limits must not be negative: %w", ErrInvalidConfig)
	}
	return nil
}

// Normalize clamps tunables into the ranges the service supports.
func (c Config) Normalize() Config {
	c.AiDepth = clamp(c.AiDepth, 0, 12)
	c.AiMaxCandidates = clamp(c.AiMaxCandidates, 1, boardCells)
	c.AiSearchCandidates = clamp(c.AiSearchCandidates, 1, c.AiMaxCandidates)
	c.AiRootWorkers = clamp(c.AiRootWorkers, 1, 64)
	c.AiWarmupDepth = clamp(c.AiWarmupDepth, 0, 8)
	c.AiQueueWorkers = clamp(c.AiQueueWorkers, 0, 64)
	c.AiQueueDepth = clamp(c.AiQueueDepth, 0, 8)
	c.AiQueueOpenings = clamp(c.AiQueueOpenings, 0, 256)
	if c.AiMemoPersistPath == "" {
		c.AiMemoPersistPath = "board_memo.gob"
	}
	return c
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var configStore = &ConfigStore{config: DefaultConfig()}

func GetConfig() Config {
	return configStore.Get()
}

func (c *ConfigStore) Get() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

func (c *ConfigStore) Update(newConfig Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.config = newConfig.Normalize()
	c.mu.Unlock()
	return nil
}

var dockerCacheDir = "/cache_logs"

// resolveCachePath anchors relative cache paths in GOMOKU_CACHE_DIR, or in
// the docker cache volume when it is mounted.
func resolveCachePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if dir := os.Getenv("GOMOKU_CACHE_DIR"); dir != "" {
		return filepath.Join(dir, path)
	}
	if stat, err := os.Stat(dockerCacheDir); err == nil && stat.IsDir() {
		return filepath.Join(dockerCacheDir, path)
	}
	return path
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
