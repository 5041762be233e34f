package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"pubquiz-ledger/internal/app"
)

// WSHandler serves the host console: a websocket per quiz that accepts
// scorekeeping commands and streams standings back.
type WSHandler struct {
	service  *app.LedgerService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LedgerService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type scorePayload struct {
	TeamID  string `json:"teamId"`
	RoundID string `json:"roundId"`
	Points  int    `json:"points"`
}

type confirmPayload struct {
	TeamID    string `json:"teamId"`
	Confirmed bool   `json:"confirmed"`
}

type completeRoundPayload struct {
	RoundID string `json:"roundId"`
}

type scoreResult struct {
	TeamID  string `json:"teamId"`
	RoundID string `json:"roundId"`
	Points  int    `json:"points"`
	Saved   bool   `json:"saved"`
}

type confirmResult struct {
	TeamID    string `json:"teamId"`
	Confirmed bool   `json:"confirmed"`
	Saved     bool   `json:"saved"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// ledger use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), quizID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "standings", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "score":
			var payload scorePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid score payload"}}
				continue
			}
			standings, saved, err := h.service.RecordScore(r.Context(), payload.TeamID, payload.RoundID, payload.Points)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "scoreResult", Payload: scoreResult{
				TeamID:  payload.TeamID,
				RoundID: payload.RoundID,
				Points:  payload.Points,
				Saved:   saved,
			}}
			send <- outboundMessage[any]{Type: "standings", Payload: standings}
		case "confirm":
			var payload confirmPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid confirm payload"}}
				continue
			}
			saved, err := h.service.Confirm(r.Context(), payload.TeamID, quizID, payload.Confirmed)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "confirmResult", Payload: confirmResult{
				TeamID:    payload.TeamID,
				Confirmed: payload.Confirmed,
				Saved:     saved,
			}}
		case "completeRound":
			var payload completeRoundPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid completeRound payload"}}
				continue
			}
			if err := h.service.CompleteRound(r.Context(), quizID, payload.RoundID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
