package http

import (
	"encoding/json"
	"log"
	"net/http"

	"campus-portal-service/internal/app"
	"campus-portal-service/internal/auth"
	"campus-portal-service/internal/quiz"
	"github.com/gorilla/websocket"
)

type QuizWSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewQuizWSHandler(service *app.QuizService, origins []string) *QuizWSHandler {
	return &QuizWSHandler{
		service:  service,
		upgrader: newUpgrader(origins),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	OptionID string `json:"optionId"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type timerPayload struct {
	Enabled bool `json:"enabled"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS attaches the caller to their quiz session and streams a "state"
// message after every transition and tick.
func (h *QuizWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	userID := principal.Subject

	engine, updates, cancel, err := h.service.Attach(r.Context(), quizID, userID)
	if err != nil {
		respondError(w, err)
		return
	}
	defer h.service.Release(quizID, userID)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; gorilla connections allow one concurrent writer
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
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
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
		if msg := h.dispatch(engine, inbound); msg != "" {
			select {
			case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch applies one inbound command. It returns an error message for
// malformed input; guarded transitions that the engine ignores are not errors.
func (h *QuizWSHandler) dispatch(engine *quiz.Engine, in inboundMessage) string {
	switch in.Type {
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil || p.OptionID == "" {
			return "invalid answer payload"
		}
		engine.HandleAnswer(p.OptionID)
	case "navigate":
		var p navigatePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return "invalid navigate payload"
		}
		engine.NavigateToQuestion(p.Index)
	case "toggleTimer":
		var p timerPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return "invalid toggleTimer payload"
		}
		engine.ToggleTimer(p.Enabled)
	case "pause":
		engine.TogglePause()
	case "reset":
		engine.ResetQuiz()
	case "finish":
		engine.FinishQuiz()
	default:
		return "unsupported message type"
	}
	return ""
}
