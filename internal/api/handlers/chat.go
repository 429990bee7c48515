package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/parchment-ai/parchment/internal/api"
	"github.com/parchment-ai/parchment/internal/domain"
	"github.com/parchment-ai/parchment/internal/service"
)

type ChatService interface {
	Ask(ctx context.Context, input service.ChatInput) (<-chan domain.ChatEvent, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Message string               `json:"message"`
	History []ChatHistoryMessage `json:"history"`
}

type ChatHistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// sseEvent is the wire shape of one server-sent event payload. Done events
// carry no data; sources events always carry a list, even when empty.
type sseEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type sseDoneEvent struct {
	Type string `json:"type"`
}

// Chat answers a question over the ingested corpus as a server-sent event
// stream. Events arrive in order: one sources event, content deltas, then a
// terminal done or error event.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		api.HandleError(w, domain.ErrEmptyMessage)
		return
	}

	history := make([]domain.ChatMessage, 0, len(req.History))
	for _, m := range req.History {
		msg := domain.ChatMessage{Role: domain.ChatRole(m.Role), Content: m.Content}
		if err := domain.ValidateChatMessage(msg); err != nil {
			api.HandleError(w, err)
			return
		}
		history = append(history, msg)
	}

	events, err := h.svc.Ask(r.Context(), service.ChatInput{Message: req.Message, History: history})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range events {
		writeSSE(w, event)
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, event domain.ChatEvent) {
	if event.Type == domain.ChatEventDone {
		encoded, err := json.Marshal(sseDoneEvent{Type: string(event.Type)})
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", encoded)
		return
	}

	payload := sseEvent{Type: string(event.Type)}
	switch event.Type {
	case domain.ChatEventSources:
		sources := event.Sources
		if sources == nil {
			sources = []string{}
		}
		payload.Data = sources
	case domain.ChatEventContent:
		payload.Data = event.Content
	case domain.ChatEventError:
		payload.Data = event.Error
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", encoded)
}
