package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"nhooyr.io/websocket"

	"corebtc/crypto"
	"corebtc/native/lockers"
	"corebtc/services/auditd/report"
	"corebtc/services/auditd/store"
)

const (
	wsWriteTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Config holds the listener and throttling settings.
type Config struct {
	ListenAddress      string
	RateLimitPerSecond float64
	RateLimitBurst     int
	Network            *chaincfg.Params
}

// Deps are the read surfaces served by the API. Lock serialises engine reads
// with writers sharing the same state.
type Deps struct {
	Registry report.Registry
	Catalog  report.Catalog
	Lock     sync.Locker
	Store    *store.Store
	Hub      *store.Hub
	Logger   *slog.Logger
}

// Server exposes the registry and its audit trail over HTTP.
type Server struct {
	cfg      Config
	registry report.Registry
	catalog  report.Catalog
	lock     sync.Locker
	store    *store.Store
	hub      *store.Hub
	logger   *slog.Logger
	limiter  *RateLimiter
	handler  http.Handler
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Registry == nil || deps.Catalog == nil {
		return nil, errors.New("auditd: registry and catalog required")
	}
	if deps.Store == nil {
		return nil, errors.New("auditd: event store required")
	}
	if cfg.Network == nil {
		cfg.Network = &chaincfg.MainNetParams
	}
	if deps.Lock == nil {
		deps.Lock = &sync.Mutex{}
	}
	if deps.Hub == nil {
		deps.Hub = store.NewHub(0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		registry: deps.Registry,
		catalog:  deps.Catalog,
		lock:     deps.Lock,
		store:    deps.Store,
		hub:      deps.Hub,
		logger:   deps.Logger,
		limiter:  NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
	s.handler = otelhttp.NewHandler(s.routes(), "auditd")
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Get("/params", s.handleParams)
		r.Get("/collaterals", s.handleCollaterals)
		r.Get("/lockers", s.handleLockers)
		r.Get("/lockers/{address}", s.handleLocker)
		r.Get("/lockers/{address}/health", s.handleLockerHealth)
		r.Get("/events", s.handleEvents)
		r.Get("/events/stream", s.handleEventStream)
	})
	return r
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.handler }

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("audit api listening", slog.String("address", s.cfg.ListenAddress))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) read(fn func() error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return fn()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"lastSequence": s.store.LastSequence(),
		"subscribers":  s.hub.Subscribers(),
	})
}

func (s *Server) handleParams(w http.ResponseWriter, _ *http.Request) {
	var view *report.ParamsView
	err := s.read(func() (err error) {
		view, err = report.Params(s.registry)
		return err
	})
	if err != nil {
		s.fail(w, "params", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCollaterals(w http.ResponseWriter, _ *http.Request) {
	var views []report.CollateralView
	err := s.read(func() (err error) {
		views, err = report.Collaterals(s.catalog)
		return err
	})
	if err != nil {
		s.fail(w, "collaterals", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleLockers(w http.ResponseWriter, r *http.Request) {
	candidates, _ := strconv.ParseBool(r.URL.Query().Get("candidates"))
	var views []report.LockerView
	err := s.read(func() (err error) {
		views, err = report.Lockers(s.registry, candidates, s.cfg.Network)
		return err
	})
	if err != nil {
		s.fail(w, "lockers", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) lockerView(w http.ResponseWriter, r *http.Request) (*report.LockerView, bool) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	var view *report.LockerView
	err = s.read(func() (err error) {
		view, err = report.Locker(s.registry, addr, s.cfg.Network)
		return err
	})
	switch {
	case errors.Is(err, lockers.ErrNoLocker):
		writeError(w, http.StatusNotFound, "locker not found")
		return nil, false
	case err != nil:
		s.fail(w, "locker", err)
		return nil, false
	}
	return view, true
}

func (s *Server) handleLocker(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lockerView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type healthView struct {
	Address         string `json:"address"`
	NetMinted       string `json:"netMinted"`
	CollateralValue string `json:"collateralValue,omitempty"`
	Capacity        string `json:"capacity,omitempty"`
	HealthFactor    string `json:"healthFactor,omitempty"`
	Liquidatable    bool   `json:"liquidatable"`
	MaxBuyable      string `json:"maxBuyable,omitempty"`
	ValuationError  string `json:"valuationError,omitempty"`
}

func (s *Server) handleLockerHealth(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lockerView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, healthView{
		Address:         view.Address,
		NetMinted:       view.NetMinted,
		CollateralValue: view.CollateralValue,
		Capacity:        view.Capacity,
		HealthFactor:    view.HealthFactor,
		Liquidatable:    view.Liquidatable,
		MaxBuyable:      view.MaxBuyable,
		ValuationError:  view.ValuationError,
	})
}

func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	filter := store.Filter{Type: strings.TrimSpace(q.Get("type"))}
	if raw := strings.TrimSpace(q.Get("locker")); raw != "" {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid locker: %w", err)
		}
		filter.Locker = addr.Hex()
	}
	if raw := strings.TrimSpace(q.Get("after")); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid after: %w", err)
		}
		filter.AfterSequence = after
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		filter.Limit = limit
	}
	return filter, nil
}

type eventView struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Locker     string            `json:"locker,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func eventViewFrom(record store.EventRecord) (eventView, error) {
	decoded, err := record.Decoded()
	if err != nil {
		return eventView{}, err
	}
	return eventView{
		Sequence:   record.Sequence,
		Type:       record.Type,
		Locker:     record.Locker,
		Attributes: decoded.Attributes,
		CreatedAt:  record.CreatedAt,
	}, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.store.Query(r.Context(), filter)
	if err != nil {
		s.fail(w, "events", err)
		return
	}
	out := make([]eventView, 0, len(records))
	for _, record := range records {
		view, err := eventViewFrom(record)
		if err != nil {
			s.fail(w, "events", err)
			return
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
			s.logger.Warn("event stream failed", slog.Any("error", err))
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

// streamEvents replays the stored backlog after filter.AfterSequence and then
// follows live records, skipping any already sent.
func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, filter store.Filter) error {
	updates, cancel := s.hub.Subscribe()
	defer cancel()

	last := filter.AfterSequence
	if last > 0 || filter.Limit > 0 {
		backlog, err := s.store.Query(ctx, filter)
		if err != nil {
			return err
		}
		for _, record := range backlog {
			if err := writeEvent(ctx, conn, record); err != nil {
				return err
			}
			last = record.Sequence
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record, ok := <-updates:
			if !ok {
				return nil
			}
			if record.Sequence <= last || !matches(filter, record) {
				continue
			}
			if err := writeEvent(ctx, conn, record); err != nil {
				return err
			}
			last = record.Sequence
		}
	}
}

func matches(filter store.Filter, record store.EventRecord) bool {
	if filter.Type != "" && filter.Type != record.Type {
		return false
	}
	if filter.Locker != "" && filter.Locker != record.Locker {
		return false
	}
	return true
}

func writeEvent(ctx context.Context, conn *websocket.Conn, record store.EventRecord) error {
	view, err := eventViewFrom(record)
	if err != nil {
		return err
	}
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (s *Server) fail(w http.ResponseWriter, route string, err error) {
	s.logger.Error("audit api request failed", slog.String("route", route), slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
