package main

import (
	"encoding/json"
	"net/http"
)

// Hub streams game events to /ws/ clients.
type Hub struct {
	*broadcaster[wsMessage]
}

type wsMovePayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func NewHub() *Hub {
	return &Hub{newBroadcaster(64, func(msg wsMessage) wsMessage { return msg })}
}

func (h *Hub) Publish(kind string, payload any) {
	if !h.offer(wsMessage{Type: kind, Payload: mustMarshal(payload)}) {
		backendLog.Warn().Str("type", kind).Msg("hub-backlog-full")
	}
}

func (h *Hub) PublishStatus(controller *GameController) {
	h.Publish("status", controllerStatus(controller))
}

func (h *Hub) PublishLatestMove(controller *GameController) {
	if entry, ok := controller.LatestHistoryEntry(); ok {
		h.Publish("history", historyPayload{History: []historyEntryDTO{historyEntryToDTO(entry)}})
	}
	h.PublishStatus(controller)
}

// serveWS greets the client with the current status and accepts
// "request_status" and "move" frames.
func serveWS(hub *Hub, controller *GameController, w http.ResponseWriter, r *http.Request) {
	sendStatus := func(c *wsClient) {
		c.sendJSON(wsMessage{Type: "status", Payload: mustMarshal(controllerStatus(controller))})
	}
	hub.serve(w, r, sendStatus, func(c *wsClient, message []byte) {
		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		switch msg.Type {
		case "request_status":
			sendStatus(c)
		case "move":
			var move wsMovePayload
			if err := json.Unmarshal(msg.Payload, &move); err != nil {
				return
			}
			if !controller.OnCellClicked(move.Row, move.Col) {
				c.sendJSON(wsMessage{Type: "error", Payload: mustMarshal(map[string]string{"error": ErrNotHumanTurn.Error()})})
			}
		}
	})
}
