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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all flow routes with the router.
//
// Ingestion:
//
//	POST /v1/flow/graphs - Submit a static graph
//	POST /v1/flow/events - Submit a runtime event batch
//
// Graph queries:
//
//	GET    /v1/flow/graphs - List graph metadata
//	GET    /v1/flow/graphs/:id - Get a graph snapshot
//	DELETE /v1/flow/graphs/:id - Delete a graph and its traces
//	GET    /v1/flow/graphs/:id/slice - Zoom-level view
//	GET    /v1/flow/graphs/:id/flows - End-to-end flow extraction
//	GET    /v1/flow/graphs/:id/traces - List traces for a graph
//	GET    /v1/flow/graphs/:id/cypher - Export as Cypher script
//	POST   /v1/flow/graphs/:id/merge - Merge pending traces
//	POST   /v1/flow/graphs/:id/push - Push snapshot to Neo4j
//
// Traces:
//
//	GET /v1/flow/traces/:id - Get a trace snapshot
//
// Health:
//
//	GET /v1/flow/health - Health and backpressure status
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	flow := rg.Group("/flow")
	{
		// Ingestion
		flow.POST("/graphs", handlers.HandleSubmitStatic)
		flow.POST("/events", handlers.HandleSubmitRuntime)

		// Graph queries
		flow.GET("/graphs", handlers.HandleListGraphs)
		flow.GET("/graphs/:id", handlers.HandleGetGraph)
		flow.DELETE("/graphs/:id", handlers.HandleDeleteGraph)
		flow.GET("/graphs/:id/slice", handlers.HandleSlice)
		flow.GET("/graphs/:id/flows", handlers.HandleFlows)
		flow.GET("/graphs/:id/traces", handlers.HandleListTraces)
		flow.GET("/graphs/:id/cypher", handlers.HandleExportCypher)
		flow.POST("/graphs/:id/merge", handlers.HandleMergePending)
		flow.POST("/graphs/:id/push", handlers.HandlePushAnalytics)

		// Traces
		flow.GET("/traces/:id", handlers.HandleGetTrace)

		// Health
		flow.GET("/health", handlers.HandleHealth)
	}
}
