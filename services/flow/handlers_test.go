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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newTestService(t, testConfig())
	svc.Start(context.Background())
	t.Cleanup(func() { svc.Stop(context.Background()) })

	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))
	return router, svc
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_SubmitStatic_Accepted(t *testing.T) {
	router, svc := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/v1/flow/graphs", ordersPayload())
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, "orders", resp.GraphID)

	require.Eventually(t, func() bool {
		_, err := svc.GetGraph("orders")
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestHandlers_SubmitStatic_MissingGraphID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/v1/flow/graphs", map[string]any{
		"nodes": []map[string]any{{"id": "n1", "type": "METHOD"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestHandlers_SubmitRuntime_UnknownGraphIs404(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/v1/flow/events", map[string]any{
		"graphId": "ghost",
		"traceId": "t1",
		"events":  []map[string]any{{"type": "METHOD_ENTER", "nodeId": "n1"}},
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "GRAPH_NOT_FOUND", resp.Code)
}

func TestHandlers_GetGraph_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/v1/flow/graphs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_Slice_InvalidLevel(t *testing.T) {
	router, svc := newTestRouter(t)
	_, err := svc.SubmitStatic(context.Background(), ordersPayload())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := svc.GetGraph("orders")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	w := doJSON(router, http.MethodGet, "/v1/flow/graphs/orders/slice?level=9", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestHandlers_Slice_DefaultLevelZero(t *testing.T) {
	router, svc := newTestRouter(t)
	_, err := svc.SubmitStatic(context.Background(), ordersPayload())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := svc.GetGraph("orders")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	w := doJSON(router, http.MethodGet, "/v1/flow/graphs/orders/slice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view GraphView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "orders", view.Meta.GraphID)
}

func TestHandlers_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/v1/flow/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, ServiceVersion, health.Version)
}

func TestHandlers_Push_DisabledIs503(t *testing.T) {
	router, svc := newTestRouter(t)
	_, err := svc.SubmitStatic(context.Background(), ordersPayload())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := svc.GetGraph("orders")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	w := doJSON(router, http.MethodPost, "/v1/flow/graphs/orders/push", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
