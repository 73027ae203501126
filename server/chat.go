package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/minseo-dev/libra/ai/core/llm"
	"github.com/minseo-dev/libra/ai/orchestrator"
	"github.com/minseo-dev/libra/store"
)

// ChatRequest is the request body of POST /api/v1/chat.
type ChatRequest struct {
	Query          string `json:"query"`
	UserID         string `json:"user_id,omitempty"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	FirstTurn      bool   `json:"first_turn,omitempty"`

	// Optional generation overrides.
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	TopP         float32 `json:"top_p,omitempty"`
}

// ChatResponse is the response body.
type ChatResponse struct {
	RequestID string         `json:"request_id"`
	Answer    string         `json:"answer"`
	Route     string         `json:"route"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	req := &ChatRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	ctx := c.Request().Context()
	if err := s.chatSem.Acquire(ctx, 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is busy")
	}
	defer s.chatSem.Release(1)

	requestID := shortuuid.New()
	done := s.exporter.ChatStarted()
	defer done()
	start := time.Now()

	var overrides *llm.GenOptions
	if req.MaxNewTokens > 0 || req.Temperature > 0 || req.TopP > 0 {
		overrides = &llm.GenOptions{
			MaxNewTokens: req.MaxNewTokens,
			Temperature:  req.Temperature,
			TopP:         req.TopP,
		}
	}

	out, err := s.orchestrator.Handle(ctx, &orchestrator.Input{
		Query:          req.Query,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Overrides:      overrides,
		FirstTurn:      req.FirstTurn,
	})
	if err != nil {
		slog.Error("chat: orchestration failed", "request_id", requestID, "error", err)
		s.exporter.RecordChatRequest("error", time.Since(start), false)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process request")
	}

	s.exporter.RecordChatRequest(out.Route, time.Since(start), true)
	slog.Info("chat: request completed",
		"request_id", requestID,
		"route", out.Route,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if req.ConversationID > 0 {
		s.persistTurn(ctx, req, out)
	}

	return c.JSON(http.StatusOK, &ChatResponse{
		RequestID: requestID,
		Answer:    out.Answer,
		Route:     out.Route,
		Metadata:  out.Metadata,
	})
}

// persistTurn appends both sides of the exchange and refreshes the rolling
// conversation summary. History is append-only; the summary is the single
// upserted row.
func (s *Server) persistTurn(ctx context.Context, req *ChatRequest, out *orchestrator.Output) {
	if _, err := s.Store.CreateChatMessage(ctx, &store.CreateChatMessage{
		ConversationID: req.ConversationID,
		Role:           store.MessageRoleUser,
		Content:        req.Query,
	}); err != nil {
		slog.Warn("chat: failed to append user message", "conversation_id", req.ConversationID, "error", err)
		return
	}
	if _, err := s.Store.CreateChatMessage(ctx, &store.CreateChatMessage{
		ConversationID: req.ConversationID,
		Role:           store.MessageRoleAssistant,
		Content:        out.Answer,
		Route:          out.Route,
	}); err != nil {
		slog.Warn("chat: failed to append assistant message", "conversation_id", req.ConversationID, "error", err)
		return
	}

	summary := rollSummary(req.Query, out.Answer)
	if _, err := s.Store.UpsertConversationSummary(ctx, &store.UpsertConversationSummary{
		ConversationID: req.ConversationID,
		Summary:        summary,
	}); err != nil {
		slog.Warn("chat: failed to upsert summary", "conversation_id", req.ConversationID, "error", err)
	}
}

// rollSummary keeps a short record of the latest exchange for prompt
// context on the next turn.
func rollSummary(query, answer string) string {
	const maxAnswer = 200
	if runes := []rune(answer); len(runes) > maxAnswer {
		answer = string(runes[:maxAnswer])
	}
	return "최근 질문: " + strings.TrimSpace(query) + "\n최근 답변: " + strings.TrimSpace(answer)
}
