// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pantry

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// =============================================================================
// HTTP Handlers
// =============================================================================

// Handlers holds the HTTP handlers for the pantry service.
type Handlers struct {
	engine *Engine
	logger *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(engine *Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{engine: engine, logger: logger}
}

// HandleUtterance handles POST /v1/pantry/utterance.
//
// Description:
//
//	Processes one conversational turn. Clarification requests and degraded
//	search results are 200 responses — they are conversation, not errors.
//
// Response:
//
//	200 OK: UtteranceResponse
//	400 Bad Request: Missing session_id or text
//	500 Internal Server Error: Session store failure
func (h *Handlers) HandleUtterance(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID))

	var req UtteranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "session_id and text are required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.engine.Process(c.Request.Context(), requestID, req)
	if err != nil {
		logger.Error("utterance processing failed",
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to process utterance",
			Code:  "PROCESSING_FAILED",
		})
		return
	}

	logger.Info("turn processed",
		slog.String("session_id", req.SessionID),
		slog.String("intent", string(resp.Intent)),
		slog.String("source", string(resp.Source)),
		slog.Bool("clarification", resp.Clarification != ""),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleGetOrder handles GET /v1/pantry/orders/:session_id.
//
// Returns the session's current cart without consuming a conversational
// turn. A session that does not exist yet returns an empty cart.
func (h *Handlers) HandleGetOrder(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "session_id is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	snap, err := h.engine.CartSnapshot(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to read order",
			Code:  "STORE_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleHealth handles GET /v1/pantry/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleReady handles GET /v1/pantry/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// getOrCreateRequestID returns the inbound X-Request-ID, minting one when
// the caller did not send it. The ID is echoed on the response for log
// correlation.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}
