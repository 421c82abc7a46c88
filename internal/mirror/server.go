package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/remote"
)

// Wire messages, matching the spreadsheet script.
const (
	msgMissing       = "Missing payload or ID"
	msgExists        = "ID already exists"
	msgNotFound      = "Job ID not found"
	msgInvalidAction = "Invalid action"
)

const maxRequestBody = 4 << 20

// Handler serves the endpoint contract over a DB.
type Handler struct {
	db     *DB
	logger *zap.Logger
}

// NewHandler returns an http.Handler for db. A nil logger disables logging.
func NewHandler(db *DB, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, logger: logger}
}

// ServeHTTP implements http.Handler. The contract uses a single URL, so
// the path is ignored.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.apply(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.All(r.Context())
	if err != nil {
		h.logger.Error("list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = wireRow(row)
	}
	writeJSON(w, http.StatusOK, out)
}

// wireRow turns a stored row into a record object. customFields is emitted
// as an object; anything that is not a JSON object becomes {}.
func wireRow(row Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	fields := json.RawMessage("{}")
	if raw := row[CustomFieldsColumn]; raw != "" {
		var m map[string]string
		if json.Unmarshal([]byte(raw), &m) == nil && m != nil {
			fields = json.RawMessage(raw)
		}
	}
	out[CustomFieldsColumn] = fields
	return out
}

type postBody struct {
	Action string                     `json:"action"`
	Data   map[string]json.RawMessage `json:"data"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body postBody
	if err := json.Unmarshal(raw, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	fields := toRow(body.Data)
	id := fields["id"]
	if body.Data == nil || id == "" {
		writeError(w, http.StatusBadRequest, msgMissing)
		return
	}

	log := h.logger.With(zap.String("action", body.Action), zap.String("id", id))
	ctx := r.Context()

	switch body.Action {
	case remote.ActionCreate:
		err = h.db.Insert(ctx, fields)
		if err == nil {
			log.Info("row created")
			writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Job created", "id": id})
			return
		}
	case remote.ActionUpdate:
		err = h.db.Update(ctx, id, fields)
		if err == nil {
			log.Info("row updated")
			writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Job updated"})
			return
		}
	case remote.ActionDelete:
		err = h.db.Delete(ctx, id)
		if err == nil {
			log.Info("row deleted")
			writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Job deleted"})
			return
		}
	default:
		writeError(w, http.StatusBadRequest, msgInvalidAction)
		return
	}

	switch {
	case errors.Is(err, ErrExists):
		writeError(w, http.StatusConflict, msgExists)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	default:
		log.Error("write failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// toRow flattens a payload to column strings. null becomes empty; other
// non-string values, customFields included, keep their JSON text.
func toRow(data map[string]json.RawMessage) Row {
	row := make(Row, len(data))
	for k, v := range data {
		var s string
		switch {
		case string(v) == "null":
			s = ""
		case json.Unmarshal(v, &s) == nil:
		default:
			s = string(v)
		}
		row[k] = s
	}
	return row
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, remote.Response{Status: "error", Message: msg})
}

// Server runs a Handler on a TCP port.
type Server struct {
	addr     string
	handler  *Handler
	logger   *zap.Logger
	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
}

// NewServer creates a server for db on port. Port 0 picks a free port.
func NewServer(db *DB, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mirror")
	return &Server{
		addr:    fmt.Sprintf(":%d", port),
		handler: NewHandler(db, logger),
		logger:  logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("mirror listening", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
