package main

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"time"
)

const analiticsDefaultTopBoards = 10

type analiticsQueueEntryDTO struct {
	ID                  string  `json:"id"`
	Board               [][]int `json:"board"`
	Source              string  `json:"source"`
	CurrentDepth        int     `json:"current_depth"`
	TargetDepth         int     `json:"target_depth"`
	Hits                int     `json:"hits"`
	Analyzing           bool    `json:"analyzing"`
	AnalysisStartedAtMs int64   `json:"analysis_started_at_ms"`
}

type analiticsQueueResponse struct {
	Queue        []analiticsQueueEntryDTO `json:"queue"`
	TotalInQueue int                      `json:"total_in_queue"`
	WarmEntries  int                      `json:"warm_entries"`
}

type analiticsPayload struct {
	Event        string                    `json:"event"`
	Entry        *analiticsQueueEventEntry `json:"entry,omitempty"`
	Search       *searchEventDTO           `json:"search,omitempty"`
	TotalInQueue int                       `json:"total_in_queue"`
	UpdatedAt    int64                     `json:"updated_at_ms"`
}

type analiticsQueueEventEntry struct {
	ID                  string `json:"id"`
	CurrentDepth        int    `json:"current_depth"`
	TargetDepth         int    `json:"target_depth"`
	Hits                int    `json:"hits"`
	Analyzing           bool   `json:"analyzing"`
	AnalysisStartedAtMs int64  `json:"analysis_started_at_ms"`
}

// searchEvent describes one search the live game consumed.
type searchEvent struct {
	Purpose    string
	Player     PlayerColor
	Stones     int
	HistoryLen int
	Result     SearchResult
}

type searchEventDTO struct {
	Purpose    string      `json:"purpose"`
	Player     int         `json:"player"`
	Stones     int         `json:"stones"`
	HistoryLen int         `json:"history_len"`
	Move       Move        `json:"move"`
	Value      float64     `json:"value"`
	Depth      int         `json:"depth"`
	ElapsedMs  float64     `json:"elapsed_ms"`
	Stats      SearchStats `json:"stats"`
}

type backlogAnalyticsEntry struct {
	Hash                uint64
	Board               *Board
	Source              string
	Stones              int
	Created             time.Time
	Hits                int
	CurrentDepth        int
	TargetDepth         int
	Analyzing           bool
	AnalysisStartedAtMs int64
}

// AnaliticsHub streams backlog progress and live search results to
// /ws/analitics clients.
type AnaliticsHub struct {
	*broadcaster[analiticsPayload]
}

func NewAnaliticsHub() *AnaliticsHub {
	return &AnaliticsHub{newBroadcaster(64, func(p analiticsPayload) wsMessage {
		return wsMessage{Type: "analitics", Payload: mustMarshal(p)}
	})}
}

func (h *AnaliticsHub) Publish(payload analiticsPayload) {
	h.offer(payload)
}

func (h *AnaliticsHub) PublishSearch(event searchEvent) {
	dto := searchEventToDTO(event)
	h.Publish(analiticsPayload{
		Event:        "search",
		Search:       &dto,
		TotalInQueue: searchBacklogManager.TotalAnaliticsQueue(),
		UpdatedAt:    time.Now().UnixMilli(),
	})
}

func serveAnaliticsWS(hub *AnaliticsHub, w http.ResponseWriter, r *http.Request) {
	hub.serve(w, r, func(c *wsClient) {
		c.sendJSON(hub.encode(analiticsPayload{
			Event:        "snapshot",
			TotalInQueue: searchBacklogManager.TotalAnaliticsQueue(),
			UpdatedAt:    time.Now().UnixMilli(),
		}))
	}, nil)
}

func hashToBoardID(hash uint64) string {
	return "0x" + strconv.FormatUint(hash, 16)
}

func boardToIntGrid(b *Board) [][]int {
	rows := make([][]int, BoardSize)
	for row := 0; row < BoardSize; row++ {
		rows[row] = make([]int, BoardSize)
		for col := 0; col < BoardSize; col++ {
			rows[row][col] = cellToInt(b.At(row, col))
		}
	}
	return rows
}

func searchEventToDTO(event searchEvent) searchEventDTO {
	return searchEventDTO{
		Purpose:    event.Purpose,
		Player:     playerToInt(event.Player),
		Stones:     event.Stones,
		HistoryLen: event.HistoryLen,
		Move:       event.Result.Move,
		Value:      event.Result.Value,
		Depth:      event.Result.Depth,
		ElapsedMs:  float64(event.Result.Elapsed.Microseconds()) / 1000,
		Stats:      event.Result.Stats,
	}
}

func analiticsEntryToDTO(entry backlogAnalyticsEntry) analiticsQueueEntryDTO {
	return analiticsQueueEntryDTO{
		ID:                  hashToBoardID(entry.Hash),
		Board:               boardToIntGrid(entry.Board),
		Source:              entry.Source,
		CurrentDepth:        entry.CurrentDepth,
		TargetDepth:         entry.TargetDepth,
		Hits:                entry.Hits,
		Analyzing:           entry.Analyzing,
		AnalysisStartedAtMs: entry.AnalysisStartedAtMs,
	}
}

func analiticsEntryToEventEntry(entry backlogAnalyticsEntry) analiticsQueueEventEntry {
	return analiticsQueueEventEntry{
		ID:                  hashToBoardID(entry.Hash),
		CurrentDepth:        entry.CurrentDepth,
		TargetDepth:         entry.TargetDepth,
		Hits:                entry.Hits,
		Analyzing:           entry.Analyzing,
		AnalysisStartedAtMs: entry.AnalysisStartedAtMs,
	}
}

func sortAnaliticsQueue(entries []backlogAnalyticsEntry) {
	slices.SortFunc(entries, compareAnaliticsPriority)
}

// compareAnaliticsPriority orders the backlog: most requested first, then
// the most developed position, then the most depth left to search.
func compareAnaliticsPriority(a, b backlogAnalyticsEntry) int {
	if c := cmp.Compare(b.Hits, a.Hits); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Stones, a.Stones); c != 0 {
		return c
	}
	if c := cmp.Compare(analiticsRemainingDepth(b), analiticsRemainingDepth(a)); c != 0 {
		return c
	}
	if c := a.Created.Compare(b.Created); c != 0 {
		return c
	}
	return cmp.Compare(a.Hash, b.Hash)
}

func analiticsRemainingDepth(entry backlogAnalyticsEntry) int {
	remaining := entry.TargetDepth - entry.CurrentDepth
	if remaining < 0 {
		return 0
	}
	return remaining
}
