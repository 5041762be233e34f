package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"pubquiz-ledger/internal/app"
	"pubquiz-ledger/internal/domain"
	"pubquiz-ledger/internal/infra/memory"
)

// RESTHandler exposes read-only standings plus the sync-status observer.
type RESTHandler struct {
	cache *memory.StandingsCache
	sync  *app.SyncManager
}

func NewRESTHandler(cache *memory.StandingsCache, sync *app.SyncManager) *RESTHandler {
	return &RESTHandler{cache: cache, sync: sync}
}

// Register mounts the REST routes on a mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/standings", h.handleStandings)
	mux.HandleFunc("/sync/status", h.handleSyncStatus)
	mux.HandleFunc("/sync/diagnostics", h.handleSyncDiagnostics)
	mux.HandleFunc("/sync", h.handleSync)
}

func (h *RESTHandler) handleStandings(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	standings, err := h.cache.Standings(r.Context(), quizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, standings)
}

func (h *RESTHandler) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.sync.Status())
}

func (h *RESTHandler) handleSyncDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.sync.Diagnostics(r.Context()))
}

func (h *RESTHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var err error
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "full":
		err = h.sync.SyncAll(r.Context())
	case "push":
		err = h.sync.Push(r.Context())
	case "pull":
		err = h.sync.Pull(r.Context())
	default:
		http.Error(w, "unknown sync mode "+mode, http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, h.sync.Status())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
