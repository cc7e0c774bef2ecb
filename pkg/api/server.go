package api

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/ocn-ai/weave/pkg/event"
	"github.com/ocn-ai/weave/pkg/ingest"
	"github.com/ocn-ai/weave/pkg/store"
)

// maxEventBody caps inbound envelope size. Payloads are hashed, never stored,
// so there is no reason to accept unbounded bodies.
const maxEventBody = 1 << 20

// Server exposes the receipt ledger over HTTP.
type Server struct {
	service *ingest.Service
	logger  *slog.Logger
}

func NewServer(service *ingest.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{service: service, logger: logger}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /events", s.handleIngest)
	mux.HandleFunc("GET /receipts", s.handleList)
	mux.HandleFunc("GET /receipts/{id}", s.handleGet)
	mux.HandleFunc("GET /receipts/trace/{trace_id}", s.handleListByTrace)
	return TraceMiddleware(mux)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteProblem(w, r, http.StatusNotFound, "Not Found", "unknown route", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "weave-receipt-ledger",
		"status":  "operational",
		"endpoints": map[string]string{
			"events":   "/events",
			"receipts": "/receipts",
			"health":   "/health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "weave"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Bad Request", "failed to read request body", "")
		return
	}

	ev, err := event.ParseEnvelope(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.service.Ingest(r.Context(), ev, clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// listResponse is the paged envelope for GET /receipts.
type listResponse struct {
	Receipts []*store.Receipt `json:"receipts"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{
		TraceID: r.URL.Query().Get("trace_id"),
		Limit:   queryInt(r, "limit", store.DefaultLimit),
		Offset:  queryInt(r, "offset", 0),
	}

	receipts, total, err := s.service.ListReceipts(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Receipts: receipts,
		Total:    total,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

func (s *Server) handleListByTrace(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListByTrace(r.Context(), r.PathValue("trace_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// writeError maps ledger errors onto Problem Detail responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *event.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteProblem(w, r, http.StatusBadRequest, "Validation Failed", verr.Message, verr.Code)
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Not Found", "no receipt with that id", "")
	case errors.Is(err, store.ErrStorageUnavailable):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Storage Unavailable",
			"the receipt store rejected the operation; retry later", "")
	default:
		s.logger.ErrorContext(r.Context(), "unhandled error", "error", err.Error())
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error", "", "")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
