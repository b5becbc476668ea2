// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/flow-core/services/flow/export"
	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/ingest"
)

// Handlers contains the HTTP handlers for the flow service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// statusFor maps an error to its HTTP status. The machine-readable code
// comes from Code; both derive from the same sentinel chain.
func statusFor(err error) int {
	switch Code(err) {
	case "GRAPH_NOT_FOUND", "TRACE_NOT_FOUND":
		return http.StatusNotFound
	case "QUEUE_FULL":
		return http.StatusTooManyRequests
	case "VALIDATION_ERROR", "INVALID_REFERENCE":
		return http.StatusBadRequest
	case "MERGE_CONFLICT":
		return http.StatusConflict
	case "MERGE_INVALID":
		return http.StatusUnprocessableEntity
	case "UNAVAILABLE":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "error", err, "code", Code(err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: Code(err)})
}

// HandleSubmitStatic handles POST /v1/flow/graphs.
//
// Accepts a static graph payload and queues it for ingestion. A 202
// acknowledges queueing only; the graph appears in reads once a worker
// has processed it.
//
// Response:
//
//	202 Accepted: SubmitResponse
//	400 Bad Request: Malformed payload
//	429 Too Many Requests: Ingestion queue full
func (h *Handlers) HandleSubmitStatic(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSubmitStatic")

	var payload ingest.StaticGraphPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
			Code:  "VALIDATION_ERROR",
		})
		return
	}

	resp, err := h.svc.SubmitStatic(c.Request.Context(), payload)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	logger.Info("Static graph queued", "graph_id", resp.GraphID, "queue_size", resp.QueueSize)
	c.JSON(http.StatusAccepted, resp)
}

// HandleSubmitRuntime handles POST /v1/flow/events.
//
// Accepts a runtime event batch for an existing graph and queues it.
// With traceComplete set, a merge is scheduled once the batch lands.
//
// Response:
//
//	202 Accepted: SubmitResponse
//	400 Bad Request: Malformed payload
//	404 Not Found: Target graph does not exist
//	429 Too Many Requests: Ingestion queue full
func (h *Handlers) HandleSubmitRuntime(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSubmitRuntime")

	var payload ingest.RuntimeEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
			Code:  "VALIDATION_ERROR",
		})
		return
	}

	resp, err := h.svc.SubmitRuntime(c.Request.Context(), payload)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	logger.Debug("Runtime events queued",
		"trace_id", resp.TraceID,
		"graph_id", resp.GraphID,
		"trace_complete", payload.TraceComplete)
	c.JSON(http.StatusAccepted, resp)
}

// HandleGetGraph handles GET /v1/flow/graphs/:id.
func (h *Handlers) HandleGetGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetGraph")

	view, err := h.svc.GetGraph(c.Param("id"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleListGraphs handles GET /v1/flow/graphs.
func (h *Handlers) HandleListGraphs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"graphs": h.svc.ListGraphs()})
}

// HandleDeleteGraph handles DELETE /v1/flow/graphs/:id.
//
// Removes the graph and all its buffered traces. Merges already running
// against the graph complete as no-ops.
func (h *Handlers) HandleDeleteGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteGraph")

	graphID := c.Param("id")
	if err := h.svc.DeleteGraph(graphID); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": graphID})
}

// HandleSlice handles GET /v1/flow/graphs/:id/slice?level=N.
//
// Returns the subgraph visible at zoom level N. Levels are zero-based;
// 0 is the highest-level summary and the default.
func (h *Handlers) HandleSlice(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSlice")

	level, err := strconv.Atoi(c.DefaultQuery("level", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid zoom level: " + c.Query("level"),
			Code:  "VALIDATION_ERROR",
		})
		return
	}

	view, err := h.svc.Slice(c.Param("id"), graph.ZoomLevel(level))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleFlows handles GET /v1/flow/graphs/:id/flows.
//
// Returns one flow per business entry point, each a breadth-first
// traversal of the reachable subgraph.
func (h *Handlers) HandleFlows(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFlows")

	flows, err := h.svc.Flows(c.Param("id"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flows": flows})
}

// HandleGetTrace handles GET /v1/flow/traces/:id.
func (h *Handlers) HandleGetTrace(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetTrace")

	view, err := h.svc.GetTrace(c.Param("id"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleListTraces handles GET /v1/flow/graphs/:id/traces.
func (h *Handlers) HandleListTraces(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListTraces")

	views, err := h.svc.ListTraces(c.Param("id"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"traces": views})
}

// HandleMergePending handles POST /v1/flow/graphs/:id/merge.
//
// Merges every complete unmerged trace of the graph, sequentially.
func (h *Handlers) HandleMergePending(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleMergePending")

	resp, err := h.svc.MergePending(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	logger.Info("Pending merges completed", "graph_id", resp.GraphID, "merged", resp.Merged)
	c.JSON(http.StatusOK, resp)
}

// HandleExportCypher handles GET /v1/flow/graphs/:id/cypher.
func (h *Handlers) HandleExportCypher(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleExportCypher")

	resp, err := h.svc.ExportCypher(c.Param("id"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandlePushAnalytics handles POST /v1/flow/graphs/:id/push.
//
// Pushes the latest graph snapshot to the configured Neo4j instance.
// Returns 503 when the push is disabled in config.
func (h *Handlers) HandlePushAnalytics(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePushAnalytics")

	result, err := h.svc.PushToAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, export.ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error: "analytics push is disabled",
				Code:  "UNAVAILABLE",
			})
			return
		}
		respondError(c, logger, err)
		return
	}
	logger.Info("Graph pushed", "graph_id", result.GraphID, "statements", result.Statements)
	c.JSON(http.StatusOK, result)
}

// HandleHealth handles GET /v1/flow/health.
//
// Reports "ok" with 200, or "degraded" with 503 once queue utilization
// exceeds the backpressure threshold, so load balancers shed load
// before the queue rejects outright.
func (h *Handlers) HandleHealth(c *gin.Context) {
	health := h.svc.Health()
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
