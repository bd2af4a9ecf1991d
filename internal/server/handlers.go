package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"solver/internal/domain"
	"solver/internal/logging"
	"solver/internal/orchestrator"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:  "ok",
			Version: s.version,
			Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		},
	})
}

// handleSolve runs a query to completion and returns its report.
func (s *Server) handleSolve(c *gin.Context) {
	query, ok := s.bindQuery(c)
	if !ok {
		return
	}
	answer, err := s.runner.Run(c.Request.Context(), query)
	report := orchestrator.NewReport(query, answer, err)
	if report.Status == orchestrator.StatusDone {
		c.JSON(http.StatusOK, APIResponse{Success: true, Data: report})
		return
	}
	c.JSON(statusForAbort(report.Abort), APIResponse{
		Success: false,
		Error:   report.Abort.Error(),
		Data:    report,
	})
}

// handleStream runs a query and streams its events as Server-Sent Events,
// ending with a done event that carries the report.
func (s *Server) handleStream(c *gin.Context) {
	query, ok := s.bindQuery(c)
	if !ok {
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	stream := &sseStream{w: w, logger: logging.FromContext(c.Request.Context(), s.logger)}
	answer, err := s.runner.Run(c.Request.Context(), query, orchestrator.WithObserver(orchestrator.ObserverFunc(func(e orchestrator.Event) {
		stream.send(string(e.Kind), e)
	})))
	report := orchestrator.NewReport(query, answer, err)
	stream.send(eventDone, doneMessage{Kind: eventDone, Report: report})
}

type sseStream struct {
	w      gin.ResponseWriter
	logger logging.Logger
	broken bool
}

// send writes one event. After a failed write the client is gone and later
// events are dropped; the run notices through its request context.
func (s *sseStream) send(event string, payload any) {
	if s.broken {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to serialize %s event: %v", event, err)
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.logger.Warn("failed to send SSE message: %v", err)
		s.broken = true
		return
	}
	s.w.Flush()
}

// handleWebSocket reads one SolveRequest, then streams run events as JSON
// messages. Closing the socket cancels the run.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(s.config.MaxQueryBytes) + 1024)

	var req SolveRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(errorMessage{Kind: string(orchestrator.EventRunAborted), Error: "invalid request: " + err.Error()})
		return
	}
	query, err := s.validateQuery(req.Query)
	if err != nil {
		_ = conn.WriteJSON(errorMessage{Kind: string(orchestrator.EventRunAborted), Error: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	logger := logging.FromContext(ctx, s.logger)
	broken := false
	write := func(payload any) {
		if broken {
			return
		}
		if err := conn.WriteJSON(payload); err != nil {
			logger.Warn("failed to send websocket message: %v", err)
			broken = true
		}
	}

	answer, err := s.runner.Run(ctx, query, orchestrator.WithObserver(orchestrator.ObserverFunc(func(e orchestrator.Event) {
		write(e)
	})))
	write(doneMessage{Kind: eventDone, Report: orchestrator.NewReport(query, answer, err)})
	if !broken {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
}

func (s *Server) bindQuery(c *gin.Context) (domain.Query, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(s.config.MaxQueryBytes)+1024)
	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, APIResponse{Success: false, Error: "invalid request: " + err.Error()})
		return "", false
	}
	query, err := s.validateQuery(req.Query)
	if err != nil {
		status := http.StatusBadRequest
		if len(req.Query) > s.config.MaxQueryBytes {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, APIResponse{Success: false, Error: err.Error()})
		return "", false
	}
	return query, true
}

func (s *Server) validateQuery(raw string) (domain.Query, error) {
	if len(raw) > s.config.MaxQueryBytes {
		return "", fmt.Errorf("query exceeds %d bytes", s.config.MaxQueryBytes)
	}
	query := domain.Query(strings.TrimSpace(raw))
	if query.Blank() {
		return "", errors.New("query is required")
	}
	return query, nil
}

func statusForAbort(abort *domain.AbortError) int {
	switch abort.Reason {
	case domain.AbortCanceled:
		return http.StatusGatewayTimeout
	case domain.AbortProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}
