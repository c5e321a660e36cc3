package main

import "net/http"

type ghostCell struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Player int `json:"player"`
}

// ghostPayload is one hint update. Mode "candidates" lists the moves under
// consideration; mode "best_move" carries the suggestion, or clears it when
// Active is false.
type ghostPayload struct {
	Mode       string      `json:"mode,omitempty"`
	Positions  []ghostCell `json:"positions,omitempty"`
	Best       *ghostCell  `json:"best,omitempty"`
	Depth      int         `json:"depth,omitempty"`
	Score      float64     `json:"score,omitempty"`
	NextPlayer int         `json:"next_player,omitempty"`
	HistoryLen int         `json:"history_len,omitempty"`
	Active     bool        `json:"active"`
	Final      bool        `json:"final,omitempty"`
}

// GhostHub streams move hints to /ws/ghost clients.
type GhostHub struct {
	*broadcaster[ghostPayload]
}

func NewGhostHub() *GhostHub {
	return &GhostHub{newBroadcaster(32, func(p ghostPayload) wsMessage {
		return wsMessage{Type: "ghost", Payload: mustMarshal(p)}
	})}
}

// Publish drops the payload when the hub is behind; the next tick sends a
// fresher one.
func (h *GhostHub) Publish(payload ghostPayload) {
	h.offer(payload)
}

func serveGhostWS(hub *GhostHub, w http.ResponseWriter, r *http.Request) {
	hub.serve(w, r, nil, nil)
}

func ghostCells(moves []Move, player int) []ghostCell {
	cells := make([]ghostCell, 0, len(moves))
	for _, m := range moves {
		cells = append(cells, ghostCell{Row: m.Row, Col: m.Col, Player: player})
	}
	return cells
}
