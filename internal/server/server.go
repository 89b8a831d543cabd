package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levelstore"
	"github.com/NLarchive/circuit-sensei-sub001/internal/taskqueue"
)

// Catalog serves level documents. Both levelstore.Store and
// levelstore.ManifestResolver satisfy it.
type Catalog interface {
	LoadAllLevels(ctx context.Context) ([]*doc.Map, error)
	LoadLevel(ctx context.Context, id string) (*doc.Map, error)
	LoadLevelVariant(ctx context.Context, id, variant string) (*doc.Map, error)
}

// Preloader is implemented by catalogs that can warm their caches in one call.
type Preloader interface {
	Preload(ctx context.Context) error
}

// Server exposes the level catalog over HTTP. Every level lookup goes
// through the priority queue so player requests preempt background work.
type Server struct {
	settings  Settings
	catalog   Catalog
	queue     *taskqueue.Queue
	processor EventProcessor
	logger    Logger
	clock     func() time.Time
	seen      *dedupe

	prefetchMu  sync.Mutex
	prefetching map[string]*taskqueue.Future

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    string
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithProcessor overrides the default event processor (no-op).
func WithProcessor(p EventProcessor) Option {
	return func(s *Server) {
		if p != nil {
			s.processor = p
		}
	}
}

// WithLogger wires a logger used for lifecycle messages.
func WithLogger(logger Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for stamping events.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer constructs a server bound to the provided settings.
func NewServer(settings Settings, catalog Catalog, queue *taskqueue.Queue, opts ...Option) (*Server, error) {
	if catalog == nil {
		return nil, errors.New("server: catalog is required")
	}
	if queue == nil {
		return nil, errors.New("server: queue is required")
	}
	srv := &Server{
		settings:  settings.withDefaults(),
		catalog:   catalog,
		queue:     queue,
		processor: EventProcessorFunc(func(Event) error { return nil }),
		logger:    nopLogger{},
		clock:     func() time.Time { return time.Now().UTC() },
		seen:      newDedupe(defaultDedupeWindow),
		status:    "stopped",

		prefetching: map[string]*taskqueue.Future{},
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv, nil
}

// Handler returns the routing table without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/levels", s.handleLevels)
	mux.HandleFunc("/levels/", s.handleLevel)
	mux.HandleFunc("/prefetch", s.handlePrefetch)
	mux.HandleFunc("/events", s.handleEvents)
	return requestID(mux)
}

// Start begins serving HTTP requests until Shutdown is invoked or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	listener, err := net.Listen("tcp", s.settings.Address())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.settings.Address(), err)
	}
	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.Timeouts.Read,
		WriteTimeout: s.settings.Timeouts.Write,
		IdleTimeout:  s.settings.Timeouts.Idle,
	}
	s.server = httpServer
	s.listener = listener
	s.status = "starting"
	s.startTime = time.Now()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	go func() {
		s.setStatus("running")
		s.logger.Printf("content server listening on %s", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("content server error: %v", err)
			s.setStatus("error")
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	s.setStatus("stopping")
	err := server.Shutdown(ctx)
	s.setStatus("stopped")
	return err
}

// Addr returns the actual listener address once the server is running.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		addr = s.settings.Address()
	}
	return "http://" + addr
}

// Status reports the current lifecycle status.
func (s *Server) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Server) uptime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(s.startTime).Seconds())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        s.Status(),
		Version:       ProtocolVersion,
		UptimeSeconds: s.uptime(),
	})
}

type statusResponse struct {
	Server string           `json:"server"`
	Queue  taskqueue.Status `json:"queue"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Server: s.Status(), Queue: s.queue.Status()})
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.respond(w, r, func(ctx context.Context) (any, error) {
		all, err := s.catalog.LoadAllLevels(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]doc.Value, 0, len(all))
		for _, level := range all {
			items = append(items, doc.FromMap(level))
		}
		return doc.List(items...), nil
	})
}

// handleLevel serves /levels/{id} and /levels/{id}/{variant}.
func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/levels/"), "/"), "/")
	var op taskqueue.Operation
	switch {
	case len(parts) == 1 && parts[0] != "":
		id := parts[0]
		op = func(ctx context.Context) (any, error) {
			level, err := s.catalog.LoadLevel(ctx, id)
			if err != nil {
				return nil, err
			}
			return doc.FromMap(level), nil
		}
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		id, variant := parts[0], strings.ToLower(parts[1])
		if !levels.IsVariantName(variant) {
			http.Error(w, fmt.Sprintf("unknown variant %q", variant), http.StatusNotFound)
			return
		}
		op = func(ctx context.Context) (any, error) {
			level, err := s.catalog.LoadLevelVariant(ctx, id, variant)
			if err != nil {
				return nil, err
			}
			return doc.FromMap(level), nil
		}
	default:
		http.NotFound(w, r)
		return
	}
	s.respond(w, r, op)
}

type prefetchResponse struct {
	Status    string   `json:"status"`
	Tasks     []string `json:"tasks,omitempty"`
	Cancelled []string `json:"cancelled,omitempty"`
}

// handlePrefetch queues background work that resolves every variant of
// every level. DELETE cancels the prefetch tasks this server queued and
// leaves every other task alone.
func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		writeJSON(w, http.StatusAccepted, prefetchResponse{Status: "queued", Tasks: s.Prefetch()})
	case http.MethodDelete:
		writeJSON(w, http.StatusOK, prefetchResponse{Status: "cancelled", Cancelled: s.CancelPrefetch()})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Prefetch submits the background warm-up and returns the task IDs.
func (s *Server) Prefetch() []string {
	priority := s.settings.Priorities.Background
	var ids []string
	if p, ok := s.catalog.(Preloader); ok {
		f := s.queue.Submit(priority, func(ctx context.Context) (any, error) {
			return nil, p.Preload(ctx)
		})
		s.trackPrefetch(f)
		ids = append(ids, f.ID())
	}
	f := s.queue.Submit(priority, func(ctx context.Context) (any, error) {
		all, err := s.catalog.LoadAllLevels(ctx)
		if err != nil {
			return nil, err
		}
		resolved := 0
		for _, level := range all {
			id := level.Text(levels.FieldID)
			for _, variant := range levels.VariantNames {
				if _, err := s.catalog.LoadLevelVariant(ctx, id, variant); err != nil {
					if errors.Is(err, levelstore.ErrNotFound) {
						continue
					}
					return resolved, err
				}
				resolved++
			}
		}
		s.logger.Printf("prefetch resolved %d variants", resolved)
		return resolved, nil
	})
	s.trackPrefetch(f)
	return append(ids, f.ID())
}

func (s *Server) trackPrefetch(f *taskqueue.Future) {
	s.prefetchMu.Lock()
	defer s.prefetchMu.Unlock()
	for id, tracked := range s.prefetching {
		if tracked.State().Terminal() {
			delete(s.prefetching, id)
		}
	}
	s.prefetching[f.ID()] = f
}

// CancelPrefetch withdraws every unfinished prefetch task and returns their
// IDs in sorted order.
func (s *Server) CancelPrefetch() []string {
	s.prefetchMu.Lock()
	defer s.prefetchMu.Unlock()
	var cancelled []string
	for id := range s.prefetching {
		delete(s.prefetching, id)
		if s.queue.Cancel(id) {
			cancelled = append(cancelled, id)
		}
	}
	sort.Strings(cancelled)
	if len(cancelled) > 0 {
		s.logger.Printf("prefetch cancelled %d task(s)", len(cancelled))
	}
	return cancelled
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var event Event
	if err := dec.Decode(&event); err != nil {
		http.Error(w, fmt.Sprintf("invalid event payload: %v", err), http.StatusBadRequest)
		return
	}
	event.Normalize()
	if err := event.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	event.StampServerTime(s.clock())
	if !s.seen.first(event.EventID) {
		writeJSON(w, http.StatusOK, eventResponse{Status: "duplicate", ServerTime: event.ServerTime})
		return
	}
	future := s.submitEvent(event)
	if _, err := future.Result(); err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusAccepted, eventResponse{Status: "queued", TaskID: future.ID(), ServerTime: event.ServerTime})
}

// Event task claim states. The task and its watcher race to move the state
// off eventQueued; the loser does nothing.
const (
	eventQueued int32 = iota
	eventClaimed
	eventAbandoned
)

// submitEvent queues event at background priority. An event whose task is
// rejected before the processor runs, or whose processor fails, is
// forgotten by the dedupe window so the client may retry it.
func (s *Server) submitEvent(event Event) *taskqueue.Future {
	var state atomic.Int32
	future := s.queue.Submit(s.settings.Priorities.Background, func(ctx context.Context) (any, error) {
		if !state.CompareAndSwap(eventQueued, eventClaimed) {
			return nil, ctx.Err()
		}
		if err := s.processor.HandleEvent(event); err != nil {
			s.seen.forget(event.EventID)
			s.logger.Printf("event %s failed: %v", event.EventID, err)
			return nil, err
		}
		return nil, nil
	})
	go func() {
		<-future.Done()
		if _, err := future.Result(); err != nil && state.CompareAndSwap(eventQueued, eventAbandoned) {
			s.seen.forget(event.EventID)
			s.logger.Printf("event %s dropped before processing: %v", event.EventID, err)
		}
	}()
	return future
}

// respond runs op at user priority and writes its doc.Value result. A
// request whose client has gone away is never queued, and its task is
// withdrawn when the client leaves while it waits.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, op taskqueue.Operation) {
	if err := r.Context().Err(); err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	future := s.queue.Submit(s.settings.Priorities.User, op)
	value, err := taskqueue.Await[doc.Value](r.Context(), future)
	if err != nil {
		if r.Context().Err() != nil && s.queue.Cancel(future.ID()) {
			s.logger.Printf("%s %s: client gone, task %s withdrawn", r.Method, r.URL.Path, future.ID())
		}
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
		}
		http.Error(w, err.Error(), status)
		return
	}
	body, err := doc.Encode(value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, levelstore.ErrNotFound):
		return http.StatusNotFound
	case taskqueue.IsCancellation(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const requestIDHeader = "X-Request-ID"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
