package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hearthwise/voicematch/internal/pipeline"
)

// componentCheckTimeout bounds each per-component health probe.
const componentCheckTimeout = 2 * time.Second

// handleMatch resolves one batch. The body may use any of the supported
// envelope shapes; malformed payloads get a 400 with the decode detail.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading request body: "+err.Error())
		return
	}

	result, err := s.processor.Process(r.Context(), "http", body)
	if err != nil {
		if errors.Is(err, pipeline.ErrDecode) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "match failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleAuditRecent returns recently processed batches, newest first.
// Query parameter "limit" caps the page size (default 50, max 200).
func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		writeUnavailable(w, "audit storage is not enabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.auditor.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		writeInternalError(w, "audit query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// handleHealth reports server liveness plus per-component status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	healthy := true

	for name, checker := range s.components {
		ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			components[name] = err.Error()
			healthy = false
		} else {
			components[name] = "ok"
		}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":          status,
		"version":         s.version,
		"components":      components,
		"ws_clients":      s.Hub().ClientCount(),
		"learned_aliases": s.processor.LearnedAliasCount(),
	})
}
