package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/assistant"
	"github.com/jobops/jobops/internal/fields"
	"github.com/jobops/jobops/internal/notify"
	"github.com/jobops/jobops/internal/query"
	"github.com/jobops/jobops/internal/store"
	"github.com/jobops/jobops/internal/types"
)

const maxRequestBody = 1 << 20

// Endpoints reads and changes the remote endpoint. *watch.Endpoints
// implements it.
type Endpoints interface {
	Endpoint(ctx context.Context) (string, error)
	SetEndpoint(ctx context.Context, url string) error
}

// APIConfig lists what the API serves. Store is required; routes for a
// nil dependency answer 404.
type APIConfig struct {
	Store     *store.Store
	Fields    *fields.Registry
	Notices   *notify.Center
	Assistant *assistant.Assistant
	Endpoints Endpoints
	Logger    *zap.Logger
	Now       func() time.Time
}

// API is the JSON API under /api/.
type API struct {
	store     *store.Store
	fields    *fields.Registry
	notices   *notify.Center
	assistant *assistant.Assistant
	endpoints Endpoints
	logger    *zap.Logger
	now       func() time.Time
}

// NewAPI creates the API.
func NewAPI(cfg APIConfig) *API {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &API{
		store:     cfg.Store,
		fields:    cfg.Fields,
		notices:   cfg.Notices,
		assistant: cfg.Assistant,
		endpoints: cfg.Endpoints,
		logger:    cfg.Logger.Named("api"),
		now:       cfg.Now,
	}
}

// Register adds the API routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/jobs", a.listJobs)
	mux.HandleFunc("POST /api/jobs", a.createJob)
	mux.HandleFunc("GET /api/jobs/{id}", a.getJob)
	mux.HandleFunc("PATCH /api/jobs/{id}", a.updateJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", a.deleteJob)
	mux.HandleFunc("GET /api/stats", a.stats)
	mux.HandleFunc("GET /api/insights", a.insights)

	if a.fields != nil {
		mux.HandleFunc("GET /api/fields", a.listFields)
		mux.HandleFunc("POST /api/fields", a.addField)
		mux.HandleFunc("DELETE /api/fields/{id}", a.removeField)
	}
	if a.notices != nil {
		mux.HandleFunc("GET /api/notifications", a.listNotifications)
		mux.HandleFunc("DELETE /api/notifications/{id}", a.dismissNotification)
	}
	if a.assistant != nil {
		mux.HandleFunc("GET /api/assistant", a.chatHistory)
		mux.HandleFunc("POST /api/assistant", a.chatSend)
		mux.HandleFunc("DELETE /api/assistant", a.chatClear)
		mux.HandleFunc("GET /api/briefing", a.briefing)
	}
	if a.endpoints != nil {
		mux.HandleFunc("GET /api/endpoint", a.getEndpoint)
		mux.HandleFunc("PUT /api/endpoint", a.putEndpoint)
		mux.HandleFunc("DELETE /api/endpoint", a.deleteEndpoint)
	}
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := query.Filter{Query: q.Get("q")}
	if s := q.Get("status"); s != "" {
		st, err := types.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		f.Status = st
	}
	srt, err := query.ParseSort(q.Get("sort"), q.Get("dir"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, query.View(a.store.Jobs(), f, srt))
}

func (a *API) createJob(w http.ResponseWriter, r *http.Request) {
	var in types.NewJob
	if !decode(w, r, &in) {
		return
	}
	job, err := a.store.Create(in)
	if err != nil {
		writeError(w, storeErrorCode(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *API) updateJob(w http.ResponseWriter, r *http.Request) {
	var patch types.Patch
	if !decode(w, r, &patch) {
		return
	}
	job, err := a.store.Update(r.PathValue("id"), patch)
	if err != nil {
		writeError(w, storeErrorCode(err), err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *API) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Delete(r.PathValue("id")); err != nil {
		writeError(w, storeErrorCode(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.Stats())
}

func (a *API) insights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, query.Compute(a.store.Jobs(), a.now()))
}

func (a *API) listFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.fields.List(r.Context()))
}

func (a *API) addField(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Label string          `json:"label"`
		Type  types.FieldType `json:"type"`
	}
	if !decode(w, r, &in) {
		return
	}
	def, err := a.fields.Add(r.Context(), in.Label, in.Type)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, types.ErrMissingField) || errors.Is(err, types.ErrInvalidFieldType) {
			code = http.StatusBadRequest
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (a *API) removeField(w http.ResponseWriter, r *http.Request) {
	if err := a.fields.Remove(r.Context(), r.PathValue("id")); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, fields.ErrNotFound) {
			code = http.StatusNotFound
		}
		writeError(w, code, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.notices.Active())
}

func (a *API) dismissNotification(w http.ResponseWriter, r *http.Request) {
	if !a.notices.Dismiss(r.PathValue("id")) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "notification not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) chatHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.assistant.History(r.Context()))
}

func (a *API) chatSend(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Message string `json:"message"`
	}
	if !decode(w, r, &in) {
		return
	}
	added, err := a.assistant.Send(r.Context(), in.Message)
	if err != nil {
		a.logger.Error("assistant send failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if added == nil {
		added = []types.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, added)
}

func (a *API) chatClear(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.assistant.Clear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) briefing(w http.ResponseWriter, r *http.Request) {
	text, err := a.assistant.Briefing(r.Context())
	switch {
	case errors.Is(err, assistant.ErrNoRecords):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, assistant.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		a.logger.Warn("briefing failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"briefing": text})
	}
}

type endpointBody struct {
	Endpoint string `json:"endpoint"`
}

func (a *API) getEndpoint(w http.ResponseWriter, r *http.Request) {
	url, err := a.endpoints.Endpoint(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, endpointBody{Endpoint: url})
}

func (a *API) putEndpoint(w http.ResponseWriter, r *http.Request) {
	var in endpointBody
	if !decode(w, r, &in) {
		return
	}
	if err := a.endpoints.SetEndpoint(r.Context(), in.Endpoint); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.getEndpoint(w, r)
}

func (a *API) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	if err := a.endpoints.SetEndpoint(r.Context(), ""); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

func storeErrorCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrMissingField), errors.Is(err, store.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotReady):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorBody{Error: err.Error()})
}
