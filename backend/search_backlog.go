package main

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	backlogIdleSleep   = 150 * time.Millisecond
	backlogOpeningPlys = 2
)

type backlogTask struct {
	board       *Board
	source      string
	created     time.Time
	targetDepth int
}

// backlogItem is one queued position and its progress. busy is set while a
// worker owns it.
type backlogItem struct {
	task  backlogTask
	stats backlogAnalyticsEntry
	busy  bool
}

// searchBacklog holds positions the idle workers search to fill the warm
// memo. Workers yield to any running game.
type searchBacklog struct {
	mu      sync.Mutex
	items   map[uint64]*backlogItem
	hub     *AnaliticsHub
	drained bool

	stop atomic.Bool
}

var searchBacklogManager = newSearchBacklog()

func newSearchBacklog() *searchBacklog {
	return &searchBacklog{items: make(map[uint64]*backlogItem)}
}

func enqueueSearchBacklogTask(b *Board, source string) {
	cfg := GetConfig()
	if !cfg.AiQueueEnabled || cfg.AiQueueDepth <= 0 || b.StoneCount() == 0 {
		return
	}
	searchBacklogManager.enqueue(backlogTask{
		board:       b.Clone(),
		source:      source,
		created:     time.Now(),
		targetDepth: cfg.AiQueueDepth,
	})
}

// enqueueArchivedOpenings queues the most played openings from the archive.
func enqueueArchivedOpenings(archive *GameArchive) int {
	cfg := GetConfig()
	if archive == nil || !cfg.AiQueueEnabled {
		return 0
	}
	openings, err := archive.Openings(backlogOpeningPlys, cfg.AiQueueOpenings)
	if err != nil {
		backlogLog.Warn().Err(err).Msg("openings-unavailable")
		return 0
	}
	queued := 0
	for _, moves := range openings {
		b, fromErr := BoardFromMoves(moves)
		if fromErr != nil {
			continue
		}
		enqueueSearchBacklogTask(b, "opening")
		queued++
	}
	backlogLog.Info().Int("openings", queued).Msg("openings-enqueued")
	return queued
}

// enqueue adds task, or counts another hit when the position is already
// queued. A repeat request may raise the target depth but never lowers it.
func (b *searchBacklog) enqueue(task backlogTask) {
	hash := task.board.Fingerprint()
	event := "board_hit"

	b.mu.Lock()
	item, ok := b.items[hash]
	if ok {
		item.stats.Hits++
		item.stats.TargetDepth = max(item.stats.TargetDepth, task.targetDepth)
		item.task.targetDepth = item.stats.TargetDepth
	} else {
		item = &backlogItem{
			task: task,
			stats: backlogAnalyticsEntry{
				Hash:        hash,
				Board:       task.board,
				Source:      task.source,
				Stones:      task.board.StoneCount(),
				Created:     task.created,
				Hits:        1,
				TargetDepth: task.targetDepth,
			},
		}
		b.items[hash] = item
		event = "board_added"
	}
	b.drained = false
	payload := b.eventLocked(event, item)
	b.mu.Unlock()

	backlogLog.Debug().Str("board", hashToBoardID(hash)).Str("source", task.source).Str("event", event).Msg("enqueue")
	b.publish(payload)
}

// claim hands the highest priority idle position to a worker.
func (b *searchBacklog) claim() (backlogTask, uint64, bool) {
	b.mu.Lock()
	var best *backlogItem
	for _, item := range b.items {
		if item.busy {
			continue
		}
		if best == nil || compareAnaliticsPriority(item.stats, best.stats) < 0 {
			best = item
		}
	}
	if best == nil {
		b.mu.Unlock()
		return backlogTask{}, 0, false
	}
	best.busy = true
	best.stats.Analyzing = true
	best.stats.AnalysisStartedAtMs = time.Now().UnixMilli()
	payload := b.eventLocked("board_started", best)
	b.mu.Unlock()

	b.publish(payload)
	return best.task, best.stats.Hash, true
}

// release hands hash back. A completed board leaves the backlog; an
// interrupted one stays for the next idle period.
func (b *searchBacklog) release(hash uint64, completed bool) {
	b.mu.Lock()
	item, ok := b.items[hash]
	if !ok {
		b.mu.Unlock()
		return
	}
	item.busy = false
	item.stats.Analyzing = false
	item.stats.AnalysisStartedAtMs = 0
	event := "board_paused"
	if completed {
		delete(b.items, hash)
		event = "board_left"
	}
	payload := b.eventLocked(event, item)
	b.mu.Unlock()

	b.publish(payload)
}

func (b *searchBacklog) recordDepth(hash uint64, depth int) {
	b.mu.Lock()
	item, ok := b.items[hash]
	if !ok || depth <= item.stats.CurrentDepth {
		b.mu.Unlock()
		return
	}
	item.stats.CurrentDepth = depth
	payload := b.eventLocked("depth_hit", item)
	b.mu.Unlock()

	b.publish(payload)
}

func (b *searchBacklog) noteDrained() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) > 0 || b.drained {
		return
	}
	b.drained = true
	backlogLog.Info().Int("warm", warmMemo.Len()).Msg("queue-drained")
}

func (b *searchBacklog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *searchBacklog) SetAnaliticsHub(hub *AnaliticsHub) {
	b.mu.Lock()
	b.hub = hub
	b.mu.Unlock()
}

// TopAnaliticsQueue returns up to limit queued positions in the order the
// workers would take them.
func (b *searchBacklog) TopAnaliticsQueue(limit int) []analiticsQueueEntryDTO {
	b.mu.Lock()
	entries := make([]backlogAnalyticsEntry, 0, len(b.items))
	for _, item := range b.items {
		entries = append(entries, item.stats)
	}
	b.mu.Unlock()

	sortAnaliticsQueue(entries)
	entries = entries[:clamp(limit, 0, len(entries))]
	out := make([]analiticsQueueEntryDTO, len(entries))
	for i, entry := range entries {
		out[i] = analiticsEntryToDTO(entry)
	}
	return out
}

func (b *searchBacklog) TotalAnaliticsQueue() int {
	return b.Len()
}

func (b *searchBacklog) eventLocked(event string, item *backlogItem) analiticsPayload {
	entry := analiticsEntryToEventEntry(item.stats)
	return analiticsPayload{
		Event:        event,
		Entry:        &entry,
		TotalInQueue: len(b.items),
		UpdatedAt:    time.Now().UnixMilli(),
	}
}

func (b *searchBacklog) publish(payload analiticsPayload) {
	b.mu.Lock()
	hub := b.hub
	b.mu.Unlock()
	if hub != nil {
		hub.Publish(payload)
	}
}

// RequestStop interrupts the running backlog searches at their next depth
// boundary.
func (b *searchBacklog) RequestStop() {
	if b.stop.CompareAndSwap(false, true) && b.Len() > 0 {
		backlogLog.Debug().Int("queued", b.Len()).Msg("stop-requested")
	}
}

func (b *searchBacklog) ResetStop() {
	b.stop.Store(false)
}

// startSearchBacklogWorkers runs the workers until ctx ends. The returned
// group is waited on at shutdown.
func startSearchBacklogWorkers(ctx context.Context, controller *GameController) *errgroup.Group {
	g, ctx := errgroup.WithContext(ctx)
	if !GetConfig().AiQueueEnabled {
		return g
	}
	workerCount := backlogWorkerCount(GetConfig(), runtime.NumCPU())
	backlogLog.Info().Int("workers", workerCount).Msg("starting")
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			searchBacklogManager.worker(ctx, controller)
			return nil
		})
	}
	return g
}

// backlogWorkerCount is the configured worker count, at least one and at
// most one per CPU.
func backlogWorkerCount(cfg Config, cpuCount int) int {
	return clamp(cfg.AiQueueWorkers, 1, max(cpuCount, 1))
}

func (b *searchBacklog) worker(ctx context.Context, controller *GameController) {
	pausedLogged := false
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if controller != nil && controller.State().Status == StatusRunning {
			b.RequestStop()
			if b.Len() > 0 && !pausedLogged {
				backlogLog.Info().Int("queued", b.Len()).Msg("game-running-paused")
				pausedLogged = true
			}
			sleepCtx(ctx, backlogIdleSleep)
			continue
		}
		pausedLogged = false
		task, hash, ok := b.claim()
		if !ok {
			b.noteDrained()
			sleepCtx(ctx, backlogIdleSleep)
			continue
		}
		b.ResetStop()
		b.release(hash, b.processTask(ctx, task, hash))
	}
}

// processTask warms the memo from task at even depths up to its target.
// It reports false when interrupted.
func (b *searchBacklog) processTask(ctx context.Context, task backlogTask, hash uint64) bool {
	config := backlogConfig(GetConfig())
	engine, err := NewEngine(task.board.ToMove(), config.AiWeight, config)
	if err != nil {
		backlogLog.Error().Err(err).Msg("engine")
		return true
	}
	start := time.Now()
	added := 0
	for depth := 2; depth <= task.targetDepth; depth += 2 {
		if b.stop.Load() || ctx.Err() != nil {
			return false
		}
		n, err := engine.WarmFrom(task.board, depth)
		if err != nil {
			backlogLog.Warn().Err(err).Str("board", hashToBoardID(hash)).Msg("warm-failed")
			return true
		}
		added += n
		b.recordDepth(hash, depth)
	}
	backlogLog.Info().
		Str("board", hashToBoardID(hash)).
		Int("stones", task.board.StoneCount()).
		Int("depth", task.targetDepth).
		Int("added", added).
		Dur("elapsed", time.Since(start)).
		Msg("board-done")
	return true
}

func backlogConfig(base Config) Config {
	base.AiRootWorkers = 1
	base.AiLogSearchStats = false
	return base
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
