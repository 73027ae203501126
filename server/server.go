// Package server exposes the orchestrator over HTTP: a chat endpoint, a
// health probe, and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/minseo-dev/libra/ai"
	"github.com/minseo-dev/libra/ai/agent"
	"github.com/minseo-dev/libra/ai/core/llm"
	"github.com/minseo-dev/libra/ai/metrics"
	"github.com/minseo-dev/libra/ai/orchestrator"
	"github.com/minseo-dev/libra/internal/profile"
	"github.com/minseo-dev/libra/store"
)

// maxConcurrentChats bounds in-flight orchestrations per process. Each
// request is internally serial, so this is the only fan-out control needed.
const maxConcurrentChats = 8

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer   *echo.Echo
	orchestrator *orchestrator.Orchestrator
	exporter     *metrics.PrometheusExporter
	chatSem      *semaphore.Weighted
}

// NewServer wires the store, LLM service, agent client, and orchestrator
// into an echo server.
func NewServer(ctx context.Context, profile *profile.Profile, storeInstance *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		Profile:    profile,
		Store:      storeInstance,
		echoServer: e,
		exporter:   metrics.NewPrometheusExporter(metrics.DefaultConfig()),
		chatSem:    semaphore.NewWeighted(maxConcurrentChats),
	}

	aiConfig := ai.NewConfigFromProfile(profile)
	if err := aiConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid AI config")
	}
	if !aiConfig.Enabled {
		return nil, errors.New("AI is not configured; set an LLM provider and API key")
	}

	llmService, err := llm.NewService(&llm.Config{
		Provider:    aiConfig.LLM.Provider,
		Model:       aiConfig.LLM.Model,
		APIKey:      aiConfig.LLM.APIKey,
		BaseURL:     aiConfig.LLM.BaseURL,
		MaxTokens:   aiConfig.LLM.MaxTokens,
		Temperature: aiConfig.LLM.Temperature,
		Timeout:     aiConfig.LLM.Timeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create LLM service")
	}
	slog.Info("LLM service initialized",
		"provider", aiConfig.LLM.Provider,
		"model", aiConfig.LLM.Model,
	)

	// Warmup is best-effort and must not delay startup.
	go func() {
		warmupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		llmService.Warmup(warmupCtx)
	}()

	var agentClient orchestrator.AgentCaller
	if aiConfig.Agent.Enabled {
		agentClient = agent.NewClient(&agent.Config{
			URL:           aiConfig.Agent.URL,
			Timeout:       aiConfig.Agent.Timeout,
			Retries:       aiConfig.Agent.Retries,
			RatePerSecond: aiConfig.Agent.RatePerSecond,
		})
		slog.Info("agent client initialized", "url", aiConfig.Agent.URL)
	} else {
		slog.Info("agent disabled; external tool routes will apologize")
	}

	s.orchestrator = orchestrator.New(orchestrator.Options{
		LLM:     llmService,
		Agent:   agentClient,
		Store:   storeInstance,
		Metrics: s.exporter,
		Config: orchestrator.Config{
			MinSplitLen:        aiConfig.Pipeline.MinSplitLen,
			MaxTasks:           aiConfig.Pipeline.MaxTasks,
			StructuralTokenMin: aiConfig.Pipeline.StructuralTokenMin,
			LongQueryLen:       aiConfig.Pipeline.LongQueryLen,
			ContextTurns:       orchestrator.DefaultConfig().ContextTurns,
			MaxSnippets:        orchestrator.DefaultConfig().MaxSnippets,
			SnippetCharBudget:  orchestrator.DefaultConfig().SnippetCharBudget,
		},
		AgentEnabled: aiConfig.Agent.Enabled,
	})

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	e := s.echoServer

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	e.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))
	e.POST("/api/v1/chat", s.handleChat)
}

// Start begins serving in a goroutine and returns immediately.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := s.listen(address)
	if err != nil {
		return err
	}

	s.echoServer.Listener = listener
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) listen(address string) (net.Listener, error) {
	if s.Profile.UNIXSock != "" {
		listener, err := net.Listen("unix", s.Profile.UNIXSock)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to listen on unix socket %s", s.Profile.UNIXSock)
		}
		return listener, nil
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", address)
	}
	return listener, nil
}

// Shutdown gracefully stops the server and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}

	slog.Info("server stopped")
}
