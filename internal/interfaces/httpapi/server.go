package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"chainsync/internal/domain"
)

type Store interface {
	Ping(ctx context.Context) error
	LastSyncedBlock(ctx context.Context, chain domain.Chain) (uint64, bool, error)
}

type ChainStatusSource interface {
	Chain() domain.Chain
	LatestHeight(ctx context.Context) (uint64, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	store     Store
	chain     ChainStatusSource
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(store Store, chain ChainStatusSource, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if store == nil || chain == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{store: store, chain: chain, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /checkpoint", s.handleCheckpoint)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	if _, err := s.chain.LatestHeight(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "node not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	chain := s.chain.Chain()
	if raw := r.URL.Query().Get("chain"); raw != "" {
		parsed, err := domain.ParseChain(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		chain = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	block, ok, err := s.store.LastSyncedBlock(ctx, chain)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no checkpoint for "+chain.String())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"chain": chain, "last_synced_block": block})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
