package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/o0olele/regionnav-go/agent"
	"github.com/o0olele/regionnav-go/config"
	"github.com/o0olele/regionnav-go/geometry"
	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/logging"
	"github.com/o0olele/regionnav-go/math32"
	"github.com/o0olele/regionnav-go/scheduler"
	"github.com/o0olele/regionnav-go/search"
)

// server exposes the graph, the scheduler and a set of agents over HTTP.
// mu serializes everything that can invoke path callbacks: Scheduler.Update,
// FindPath and every agent call.
type server struct {
	cfg       *config.Config
	graph     *graph.RegionGraph
	sched     *scheduler.Scheduler
	sampler   *graph.BoundsSampler
	obstacles *geometry.ObstacleSet
	registry  *prometheus.Registry
	logger    logging.Logger

	mu      sync.Mutex
	results map[int64]*requestResult
	agents  map[uuid.UUID]*agentEntry
}

type agentEntry struct {
	follower *agent.Follower
	position math32.Vector3
}

type requestResult struct {
	Done      bool              `json:"done"`
	Found     bool              `json:"found"`
	Waypoints []search.Waypoint `json:"waypoints,omitempty"`
	Length    float32           `json:"length"`
}

func newServer(cfg *config.Config, g *graph.RegionGraph, sched *scheduler.Scheduler, reg *prometheus.Registry, logger logging.Logger) *server {
	return &server{
		cfg:       cfg,
		graph:     g,
		sched:     sched,
		sampler:   graph.NewBoundsSampler(g, cfg.Sampler.CacheSize),
		obstacles: geometry.NewObstacleSet(),
		registry:  reg,
		logger:    logging.OrNoOp(logger),
		results:   make(map[int64]*requestResult),
		agents:    make(map[uuid.UUID]*agentEntry),
	}
}

func (s *server) handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/areas", s.listAreasHandler).Methods("GET")
	api.HandleFunc("/areas/{id}", s.deregisterAreaHandler).Methods("DELETE")
	api.HandleFunc("/areas/{id}/restore", s.restoreAreaHandler).Methods("POST")
	api.HandleFunc("/sample", s.sampleHandler).Methods("POST")
	api.HandleFunc("/pathfind", s.findPathHandler).Methods("POST")
	api.HandleFunc("/requests", s.submitHandler).Methods("POST")
	api.HandleFunc("/requests/{id}", s.requestHandler).Methods("GET")
	api.HandleFunc("/requests/{id}", s.cancelHandler).Methods("DELETE")
	api.HandleFunc("/links/{id}/enabled", s.linkEnabledHandler).Methods("PUT")
	api.HandleFunc("/obstacles", s.addObstacleHandler).Methods("POST")
	api.HandleFunc("/agents", s.createAgentHandler).Methods("POST")
	api.HandleFunc("/agents/{id}", s.agentHandler).Methods("GET")
	api.HandleFunc("/agents/{id}", s.deleteAgentHandler).Methods("DELETE")
	api.HandleFunc("/agents/{id}/tick", s.tickAgentHandler).Methods("POST")
	api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// tick runs one scheduling step. Agents move only when a position is posted.
func (s *server) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Update()
}

// close detaches every agent so their pooled paths return to the scheduler.
func (s *server) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.agents {
		e.follower.Close()
		delete(s.agents, id)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

type areaInfo struct {
	ID      int64         `json:"id"`
	Kind    string        `json:"kind"`
	Regions int           `json:"regions"`
	Layer   int32         `json:"layer"`
	Scene   uuid.UUID     `json:"scene"`
	Bounds  geometry.AABB `json:"bounds"`
}

func (s *server) listAreasHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.graph.Snapshot()
	areas := make([]areaInfo, 0, snap.AreaCount())
	for _, a := range snap.Areas() {
		areas = append(areas, areaInfo{
			ID:      a.ID,
			Kind:    a.Kind.String(),
			Regions: len(a.Dataset.Regions),
			Layer:   a.Layer,
			Scene:   a.Scene,
			Bounds:  a.Bounds,
		})
	}
	writeJSON(w, map[string]any{"version": snap.Version(), "areas": areas})
}

func (s *server) deregisterAreaHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid area id", http.StatusBadRequest)
		return
	}
	free := r.URL.Query().Get("free") == "true"
	if !s.graph.Deregister(id, free) {
		http.Error(w, "Area not found", http.StatusNotFound)
		return
	}
	s.logger.Info("area deregistered", "area", id, "free_data", free)
	writeJSON(w, map[string]string{"status": "deregistered"})
}

func (s *server) restoreAreaHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid area id", http.StatusBadRequest)
		return
	}
	if err := s.graph.Restore(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "restored"})
}

type sampleRequest struct {
	Position math32.Vector3       `json:"position"`
	Radius   float32              `json:"radius,omitempty"`
	Kinds    graph.AreaKindMask   `json:"kinds,omitempty"`
	Priority graph.SamplePriority `json:"priority,omitempty"`
}

func (s *server) sample(pos math32.Vector3, radius float32, kinds graph.AreaKindMask, priority graph.SamplePriority) graph.SampleResult {
	if radius <= 0 {
		radius = s.cfg.Sampler.Radius
	}
	if kinds == 0 {
		kinds = graph.MaskAll
	}
	return s.sampler.Sample(pos, radius, kinds, graph.AllLayers, priority)
}

func (s *server) sampleHandler(w http.ResponseWriter, r *http.Request) {
	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	res := s.sample(req.Position, req.Radius, req.Kinds, req.Priority)
	writeJSON(w, map[string]any{"valid": res.Valid(), "sample": res})
}

// PathfindRequest is the body of /api/pathfind and /api/requests.
type PathfindRequest struct {
	Start  math32.Vector3 `json:"start"`
	End    math32.Vector3 `json:"end"`
	Radius float32        `json:"radius,omitempty"`
	Params *search.Params `json:"params,omitempty"`
}

type PathfindResponse struct {
	Found     bool              `json:"found"`
	Waypoints []search.Waypoint `json:"waypoints"`
	Length    float32           `json:"length"`
	Debug     map[string]any    `json:"debug,omitempty"`
}

func (s *server) decodePathfind(w http.ResponseWriter, r *http.Request) (PathfindRequest, graph.SampleResult, graph.SampleResult, search.Params, bool) {
	var req PathfindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return req, graph.SampleResult{}, graph.SampleResult{}, search.Params{}, false
	}
	params := search.DefaultParams()
	if req.Params != nil {
		params = *req.Params
	}
	start := s.sample(req.Start, req.Radius, params.AreaTypes, graph.PriorityNearest)
	end := s.sample(req.End, req.Radius, params.AreaTypes, graph.PriorityNearest)
	return req, start, end, params, true
}

func pathError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduler.ErrMalformedRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, scheduler.ErrNoAreas):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	}
}

func (s *server) findPathHandler(w http.ResponseWriter, r *http.Request) {
	req, start, end, params, ok := s.decodePathfind(w, r)
	if !ok {
		return
	}

	begin := time.Now()
	path, err := s.sched.FindPathImmediate(start, end, req.Start, req.End, params)
	if err != nil {
		pathError(w, err)
		return
	}
	elapsed := time.Since(begin)

	resp := PathfindResponse{
		Found: path != nil,
		Debug: map[string]any{
			"elapsed":     elapsed.String(),
			"start_area":  start.AreaID,
			"end_area":    end.AreaID,
			"graph_epoch": s.graph.Snapshot().Version(),
		},
	}
	if path != nil {
		resp.Waypoints = append([]search.Waypoint(nil), path.Waypoints()...)
		resp.Length = path.Length()
		path.Dispose()
	}
	writeJSON(w, resp)
}

func (s *server) submitHandler(w http.ResponseWriter, r *http.Request) {
	req, start, end, params, ok := s.decodePathfind(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	id, err := s.sched.FindPath(start, end, req.Start, req.End, params, s.storeResult)
	if err == nil {
		if _, done := s.results[id]; !done {
			s.results[id] = &requestResult{}
		}
	}
	s.mu.Unlock()
	if err != nil {
		pathError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]int64{"id": id})
}

// storeResult runs with s.mu held by tick or submitHandler.
func (s *server) storeResult(id int64, path *scheduler.Path) {
	res := &requestResult{Done: true}
	if path != nil {
		res.Found = true
		res.Waypoints = append([]search.Waypoint(nil), path.Waypoints()...)
		res.Length = path.Length()
		path.Dispose()
	}
	s.results[id] = res
}

func (s *server) requestHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid request id", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	res, ok := s.results[id]
	if ok && res.Done {
		delete(s.results, id)
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	writeJSON(w, res)
}

func (s *server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid request id", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	cancelled := s.sched.Cancel(id, true)
	if cancelled {
		delete(s.results, id)
	}
	s.mu.Unlock()
	writeJSON(w, map[string]bool{"cancelled": cancelled})
}

func (s *server) linkEnabledHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid link id", http.StatusBadRequest)
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := s.graph.SetManualLinkEnabled(id, body.Enabled); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]bool{"enabled": body.Enabled})
}

func (s *server) addObstacleHandler(w http.ResponseWriter, r *http.Request) {
	var o geometry.Obstacle
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	s.obstacles.Add(o)
	writeJSON(w, map[string]int{"obstacles": s.obstacles.Len()})
}

type agentRequest struct {
	Position    math32.Vector3 `json:"position"`
	Destination math32.Vector3 `json:"destination"`
}

type agentResponse struct {
	ID        uuid.UUID         `json:"id"`
	State     string            `json:"state"`
	Result    string            `json:"result,omitempty"`
	Index     int               `json:"index"`
	Arrived   bool              `json:"arrived"`
	Pending   []int64           `json:"pending"`
	Remaining float32           `json:"remaining"`
	Velocity  math32.Vector3    `json:"velocity"`
	Waypoints []search.Waypoint `json:"waypoints,omitempty"`
}

// describe must run with s.mu held.
func (s *server) describe(id uuid.UUID, f *agent.Follower, position math32.Vector3) agentResponse {
	resp := agentResponse{
		ID:        id,
		State:     f.State().String(),
		Index:     f.Index(),
		Arrived:   f.Arrived(),
		Pending:   f.PendingRequestIDs(),
		Remaining: f.RemainingDistance(position),
		Velocity:  f.DesiredVelocity(position, 1),
	}
	if p := f.Path(); p != nil {
		resp.Waypoints = p.Waypoints()
	}
	return resp
}

func (s *server) createAgentHandler(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := agent.New(s.cfg.Agent, s.sched, s.sampler,
		agent.WithCaster(s.obstacles),
		agent.WithLogger(logging.WithComponent(s.logger, "agent")),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	id := uuid.New()
	s.agents[id] = &agentEntry{follower: f, position: req.Position}

	f.SetDestination(req.Destination)
	result, err := f.UpdatePath(req.Position)
	if err != nil {
		delete(s.agents, id)
		f.Close()
		pathError(w, err)
		return
	}
	resp := s.describe(id, f, req.Position)
	resp.Result = result.String()
	writeJSONStatus(w, http.StatusCreated, resp)
}

func (s *server) lookupAgent(w http.ResponseWriter, r *http.Request) (uuid.UUID, *agentEntry, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid agent id", http.StatusBadRequest)
		return id, nil, false
	}
	e, ok := s.agents[id]
	if !ok {
		http.Error(w, "Agent not found", http.StatusNotFound)
		return id, nil, false
	}
	return id, e, true
}

func (s *server) agentHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, e, ok := s.lookupAgent(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.describe(id, e.follower, e.position))
}

func (s *server) tickAgentHandler(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, e, ok := s.lookupAgent(w, r)
	if !ok {
		return
	}
	e.position = req.Position
	e.follower.Tick(req.Position)
	writeJSON(w, s.describe(id, e.follower, req.Position))
}

func (s *server) deleteAgentHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, e, ok := s.lookupAgent(w, r)
	if !ok {
		return
	}
	e.follower.Close()
	delete(s.agents, id)
	writeJSON(w, map[string]string{"status": "deleted"})
}

func (s *server) statsHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.graph.Snapshot()
	s.mu.Lock()
	agents := len(s.agents)
	s.mu.Unlock()
	writeJSON(w, map[string]any{
		"scheduler": s.sched.Stats(),
		"sampler":   s.sampler.CacheStats(),
		"graph": map[string]any{
			"version":  snap.Version(),
			"areas":    snap.AreaCount(),
			"mutating": s.graph.Guard().Active(),
		},
		"agents":    agents,
		"obstacles": s.obstacles.Len(),
		"uptime":    fmt.Sprint(time.Since(startTime).Round(time.Second)),
	})
}

var startTime = time.Now()
