package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sqlgate/sqlgate"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every error response except a failed query,
// which /api/execute reports inside its QueryResponse.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type rootResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"execute":     "/api/execute",
		"tables":      "/api/tables",
		"table_info":  "/api/table/{table_name}",
		"health":      "/api/health",
		"sample":      "/api/employees/sample",
		"departments": "/api/departments",
		"stats":       "/api/stats",
	}
	if s.mcp {
		endpoints["mcp"] = "/mcp"
	}
	writeJSON(w, http.StatusOK, rootResponse{
		Message:   "Employee Database SQL Executor API",
		Version:   s.version,
		Endpoints: endpoints,
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.Health(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var req sqlgate.QueryRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid JSON body: trailing data")
		return
	}

	resp := s.engine.Execute(r.Context(), req)
	status := http.StatusOK
	if resp.Kind == sqlgate.OutcomeUnavailable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *server) handleTables(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.ListTables(r.Context())
	if err != nil {
		writeError(w, failureStatus(err), "Failed to get table list: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	out, err := s.engine.DescribeTable(r.Context(), sqlgate.DescribeTableInput{Table: name})
	if err != nil {
		status := failureStatus(err)
		if errors.Is(err, sqlgate.ErrTableNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, "Failed to get table info: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleSample(w http.ResponseWriter, r *http.Request) {
	limit := sqlgate.DefaultSampleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	out, err := s.engine.SampleEmployees(r.Context(), limit)
	if err != nil {
		writeError(w, failureStatus(err), "Query failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.Departments(r.Context())
	if err != nil {
		writeError(w, failureStatus(err), "Query failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.Stats(r.Context())
	if err != nil {
		writeError(w, failureStatus(err), "Query failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// failureStatus maps connection failures to 503 and everything else to 500.
func failureStatus(err error) int {
	if errors.Is(err, sqlgate.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
