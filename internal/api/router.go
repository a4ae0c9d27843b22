package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/store"
	"github.com/sells-group/mc-extractor/internal/worklist"
)

// maxStartBody bounds the POST /runs request body.
const maxStartBody = 1 << 20

// NewRouter wires the control API. st may be nil when run history is
// disabled; only the most recent run is then readable. maxRange caps the
// number of MC numbers one run may request.
func NewRouter(ctl *Controller, st store.Store, allowedOrigins []string, maxRange int) http.Handler {
	h := &handler{ctl: ctl, st: st, maxRange: maxRange, log: zap.L().With(zap.String("component", "api"))}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Post("/", h.startRun)
		r.Get("/current", h.currentRun)
		r.Post("/current/stop", h.stopRun)
		r.Get("/current/events", h.streamEvents)
		r.Get("/{id}", h.getRun)
		r.Get("/{id}/rows", h.listRows)
	})
	return r
}

type handler struct {
	ctl      *Controller
	st       store.Store
	maxRange int
	log      *zap.Logger
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startRequest selects the worklist: either Numbers or the Start..End range.
type startRequest struct {
	Start   int   `json:"start"`
	End     int   `json:"end"`
	Numbers []int `json:"numbers"`
}

func (req startRequest) worklist(maxLen int) (worklist.Worklist, error) {
	if maxLen <= 0 {
		maxLen = worklist.DefaultMaxRange
	}
	if len(req.Numbers) > 0 {
		if len(req.Numbers) > maxLen {
			return worklist.Worklist{}, eris.Wrapf(worklist.ErrRangeTooLarge, "api: %d numbers exceeds %d", len(req.Numbers), maxLen)
		}
		return worklist.FromNumbers("api list", req.Numbers)
	}
	if req.Start == 0 && req.End == 0 {
		return worklist.Worklist{}, eris.New("api: either numbers or start and end are required")
	}
	return worklist.FromRangeMax(req.Start, req.End, maxLen)
}

func (h *handler) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxStartBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	wl, err := req.worklist(h.maxRange)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_worklist", err.Error())
		return
	}

	run, err := h.ctl.Start(wl)
	switch {
	case eris.Is(err, ErrRunActive):
		writeError(w, r, http.StatusConflict, "run_active", err.Error())
		return
	case err != nil:
		h.log.Error("start run", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (h *handler) stopRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.ctl.Stop()
	if err != nil {
		writeError(w, r, http.StatusConflict, "no_active_run", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (h *handler) currentRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.ctl.Current()
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "no run has been started")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if run, ok := h.ctl.Current(); ok && run.ID == id {
		writeJSON(w, http.StatusOK, run)
		return
	}
	if h.st == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "run not found")
		return
	}

	run, err := h.st.GetRun(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", "run not found")
		return
	}
	if err != nil {
		h.log.Error("get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "store_error", "could not load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.st == nil {
		runs := []model.Run{}
		if run, ok := h.ctl.Current(); ok {
			runs = append(runs, run)
		}
		writeJSON(w, http.StatusOK, runs)
		return
	}

	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	runs, err := h.st.ListRuns(r.Context(), store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.log.Error("list runs", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "store_error", "could not list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handler) listRows(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var tier model.Tier
	if v := r.URL.Query().Get("tier"); v != "" {
		t, ok := model.ParseTier(v)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_query", fmt.Sprintf("unknown tier %q", v))
			return
		}
		tier = t
	}

	if rows, ok := h.ctl.Rows(id); ok {
		writeJSON(w, http.StatusOK, filterTier(rows, tier))
		return
	}
	if h.st == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "run not found")
		return
	}

	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	if _, err := h.st.GetRun(r.Context(), id); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "run not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "store_error", "could not load run")
		return
	}
	rows, err := h.st.ListRows(r.Context(), store.RowFilter{RunID: id, Tier: tier, Limit: limit, Offset: offset})
	if err != nil {
		h.log.Error("list rows", zap.String("run_id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "store_error", "could not list rows")
		return
	}
	if rows == nil {
		rows = []model.ResultRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// streamEvents relays run events as server-sent events until the client
// goes away or a run finishes.
func (h *handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "stream_unsupported", "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.ctl.Hub().Subscribe()
	defer h.ctl.Hub().Unsubscribe(ch)

	fmt.Fprint(w, ": connected\n\n") //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("encode event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data) //nolint:errcheck
			flusher.Flush()
			if ev.Kind == model.EventFinished {
				return
			}
		}
	}
}

func paging(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, eris.Errorf("api: invalid limit %q", v)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, eris.Errorf("api: invalid offset %q", v)
		}
	}
	return limit, offset, nil
}

func filterTier(rows []model.ResultRow, tier model.Tier) []model.ResultRow {
	out := []model.ResultRow{}
	for _, row := range rows {
		if tier == "" || row.Tier == tier {
			out = append(out, row)
		}
	}
	return out
}
