package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parchment-ai/parchment/internal/domain"
	"github.com/parchment-ai/parchment/internal/service"
)

// MockChatService mocks the retrieval-answer pipeline
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Ask(ctx context.Context, input service.ChatInput) (<-chan domain.ChatEvent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan domain.ChatEvent), args.Error(1)
}

func eventChannel(events ...domain.ChatEvent) <-chan domain.ChatEvent {
	ch := make(chan domain.ChatEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestChatHandler_Chat_StreamsEvents(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	svc.On("Ask", mock.Anything, mock.MatchedBy(func(input service.ChatInput) bool {
		return input.Message == "what is alpha?" && len(input.History) == 2
	})).Return(eventChannel(
		domain.ChatEvent{Type: domain.ChatEventSources, Sources: []string{"alpha.pdf"}},
		domain.ChatEvent{Type: domain.ChatEventContent, Content: "Alpha "},
		domain.ChatEvent{Type: domain.ChatEventContent, Content: "is a thing."},
		domain.ChatEvent{Type: domain.ChatEventDone},
	), nil)

	body := `{"message":"what is alpha?","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 4)
	assert.Equal(t, `data: {"type":"sources","data":["alpha.pdf"]}`, frames[0])
	assert.Equal(t, `data: {"type":"content","data":"Alpha "}`, frames[1])
	assert.Equal(t, `data: {"type":"content","data":"is a thing."}`, frames[2])
	assert.Equal(t, `data: {"type":"done"}`, frames[3])
}

func TestChatHandler_Chat_EmptySourcesKeepDataField(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	svc.On("Ask", mock.Anything, mock.Anything).Return(eventChannel(
		domain.ChatEvent{Type: domain.ChatEventSources},
		domain.ChatEvent{Type: domain.ChatEventDone},
	), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Contains(t, rec.Body.String(), `data: {"type":"sources","data":[]}`)
}

func TestChatHandler_Chat_ErrorEventTerminatesStream(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	svc.On("Ask", mock.Anything, mock.Anything).Return(eventChannel(
		domain.ChatEvent{Type: domain.ChatEventSources, Sources: []string{"alpha.pdf"}},
		domain.ChatEvent{Type: domain.ChatEventContent, Content: "partial"},
		domain.ChatEvent{Type: domain.ChatEventError, Error: "generation failed: connection dropped"},
	), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `data: {"type":"error","data":"generation failed: connection dropped"}`)
	assert.NotContains(t, body, `"type":"done"`)
}

func TestChatHandler_Chat_InvalidBody(t *testing.T) {
	handler := NewChatHandler(new(MockChatService))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_Chat_EmptyMessage(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":""}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
}

func TestChatHandler_Chat_InvalidHistoryRole(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	body := `{"message":"hi","history":[{"role":"system","content":"sneaky"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
}

func TestChatHandler_Chat_PreStreamFailureIsPlainError(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	svc.On("Ask", mock.Anything, mock.Anything).
		Return(nil, domain.NewProviderError("embedding", assert.AnError))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
