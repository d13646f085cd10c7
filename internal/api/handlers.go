package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/roach88/claimgraph/internal/federation"
	"github.com/roach88/claimgraph/internal/query"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	timeout, err := parseTimeout(r.URL.Query().Get("timeout"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	withTotal := true
	if v := r.URL.Query().Get("withTotalCount"); v != "" {
		withTotal, err = strconv.ParseBool(v)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("withTotalCount: %v", err))
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if len(body) == 0 {
		writeErrorCode(w, http.StatusBadRequest, CodeBadRequest, "query body is empty")
		return
	}

	res, err := s.queries.Query(r.Context(), query.Request{
		Body:           string(body),
		ContentType:    r.Header.Get("Content-Type"),
		Timeout:        timeout,
		WithTotalCount: withTotal,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQueryInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queries.Info())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var st federation.Statement
	if err := dec.Decode(&st); err != nil {
		writeErrorCode(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("decode statement: %v", err))
		return
	}

	res, err := s.searcher.Search(r.Context(), &st)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	opts := s.defaults
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		writeErrorCode(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("decode rebuild options: %v", err))
		return
	}

	started, err := s.rebuilds.Trigger(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !started {
		writeErrorCode(w, http.StatusConflict, CodeRebuildRunning, "a graph rebuild is already running")
		return
	}
	s.status.Delete(statusCacheKey)
	writeJSON(w, http.StatusAccepted, s.rebuilds.Status())
}

func (s *Server) handleRebuildStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rebuilds.Status())
}

func (s *Server) handleGraphStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.graphStatus(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.graphStatus(r.Context())
	if !st.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseTimeout accepts a Go duration ("750ms") or a number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("timeout must be positive, got %s", v)
		}
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("timeout must be a positive duration or number of seconds, got %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
