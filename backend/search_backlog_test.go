package main

import (
	"context"
	"testing"
	"time"
)

func TestBacklogWorkerCountDefaultsToSingleWorker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AiQueueWorkers = 0
	got := backlogWorkerCount(cfg, 8)
	if got != 1 {
		t.Fatalf("expected 1 worker by default, got %d", got)
	}
}

func TestBacklogWorkerCountCapsAtCPUCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AiQueueWorkers = 64
	got := backlogWorkerCount(cfg, 6)
	if got != 6 {
		t.Fatalf("expected worker count capped to cpu count, got %d", got)
	}
}

func TestBacklogWorkerCountRespectsConfiguredValue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AiQueueWorkers = 3
	got := backlogWorkerCount(cfg, 8)
	if got != 3 {
		t.Fatalf("expected configured worker count, got %d", got)
	}
}

func backlogTaskFor(t *testing.T, moves []Move, depth int) backlogTask {
	t.Helper()
	b, err := BoardFromMoves(moves)
	if err != nil {
		t.Fatalf("from moves: %v", err)
	}
	return backlogTask{board: b, source: "test", created: time.Now(), targetDepth: depth}
}

func TestBacklogEnqueueDeduplicatesAndCountsHits(t *testing.T) {
	backlog := newSearchBacklog()
	task := backlogTaskFor(t, []Move{{7, 7}, {7, 8}}, 2)
	backlog.enqueue(task)
	backlog.enqueue(backlogTaskFor(t, []Move{{7, 7}, {7, 8}}, 4))
	backlog.enqueue(backlogTaskFor(t, []Move{{7, 7}}, 2))

	if backlog.Len() != 2 {
		t.Fatalf("expected 2 distinct boards, got %d", backlog.Len())
	}
	top := backlog.TopAnaliticsQueue(10)
	if len(top) != 2 {
		t.Fatalf("expected 2 analytics entries, got %d", len(top))
	}
	first := top[0]
	if first.Hits != 2 || first.TargetDepth != 4 {
		t.Fatalf("expected the repeated board first with 2 hits and depth 4, got %+v", first)
	}
	if backlog.TopAnaliticsQueue(0) == nil || len(backlog.TopAnaliticsQueue(0)) != 0 {
		t.Fatalf("expected an empty non-nil list for limit 0")
	}
}

func TestBacklogClaimAndRelease(t *testing.T) {
	backlog := newSearchBacklog()
	backlog.enqueue(backlogTaskFor(t, []Move{{7, 7}}, 2))

	task, hash, ok := backlog.claim()
	if !ok || hash != task.board.Fingerprint() {
		t.Fatalf("expected the queued board to be picked")
	}
	if _, _, again := backlog.claim(); again {
		t.Fatalf("a board being processed must not be picked twice")
	}
	if top := backlog.TopAnaliticsQueue(1); !top[0].Analyzing || top[0].AnalysisStartedAtMs == 0 {
		t.Fatalf("expected the claimed board to be marked as analyzing, got %+v", top[0])
	}

	backlog.release(hash, false)
	if backlog.Len() != 1 {
		t.Fatalf("an interrupted board stays queued")
	}
	if top := backlog.TopAnaliticsQueue(1); top[0].Analyzing {
		t.Fatalf("a released board is no longer analyzing")
	}
	if _, hash, ok = backlog.claim(); !ok {
		t.Fatalf("expected the paused board to be picked again")
	}
	backlog.release(hash, true)
	if backlog.Len() != 0 || backlog.TotalAnaliticsQueue() != 0 {
		t.Fatalf("a completed board leaves the queue")
	}
}

func TestBacklogProcessTaskWarmsMemo(t *testing.T) {
	t.Cleanup(warmMemo.Clear)
	warmMemo.Clear()

	backlog := newSearchBacklog()
	task := backlogTaskFor(t, []Move{{7, 7}, {8, 8}, {7, 8}}, 2)
	backlog.enqueue(task)
	hash := task.board.Fingerprint()

	if !backlog.processTask(context.Background(), task, hash) {
		t.Fatalf("expected the task to complete")
	}
	if warmMemo.Len() == 0 {
		t.Fatalf("expected the warm memo to be filled")
	}
	top := backlog.TopAnaliticsQueue(1)
	if len(top) != 1 || top[0].CurrentDepth != 2 {
		t.Fatalf("expected depth progress to be recorded, got %+v", top)
	}
	if task.board.StoneCount() != 3 {
		t.Fatalf("queued board modified by the search")
	}
}

func TestBacklogProcessTaskStopsWhenRequested(t *testing.T) {
	backlog := newSearchBacklog()
	task := backlogTaskFor(t, []Move{{7, 7}}, 4)
	backlog.RequestStop()
	if backlog.processTask(context.Background(), task, task.board.Fingerprint()) {
		t.Fatalf("expected a stopped task to report interruption")
	}
	backlog.ResetStop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if backlog.processTask(ctx, task, task.board.Fingerprint()) {
		t.Fatalf("expected a cancelled task to report interruption")
	}
}

func TestBacklogConfigForcesSequentialSearch(t *testing.T) {
	base := DefaultConfig()
	base.AiRootWorkers = 8
	base.AiLogSearchStats = true
	cfg := backlogConfig(base)
	if cfg.AiRootWorkers != 1 || cfg.AiLogSearchStats {
		t.Fatalf("expected one quiet root worker, got %+v", cfg)
	}
}

func TestEnqueueSkipsEmptyBoard(t *testing.T) {
	saved := searchBacklogManager
	searchBacklogManager = newSearchBacklog()
	t.Cleanup(func() { searchBacklogManager = saved })

	enqueueSearchBacklogTask(NewBoard(), "test")
	if searchBacklogManager.Len() != 0 {
		t.Fatalf("an empty board must not be queued")
	}
	b, err := BoardFromMoves([]Move{{7, 7}})
	if err != nil {
		t.Fatalf("from moves: %v", err)
	}
	enqueueSearchBacklogTask(b, "test")
	if searchBacklogManager.Len() != 1 {
		t.Fatalf("expected the board to be queued")
	}
}
