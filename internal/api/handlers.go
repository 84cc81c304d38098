package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/deepscan"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/events"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/scanning"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/topology"
)

// ScanRequest is the body of POST /api/v1/scans. Ports defaults to the
// standard probe list; Options applies to deep scans only and is
// normalized from configuration where fields are zero.
type ScanRequest struct {
	Target  string                 `json:"target" validate:"required"`
	Type    string                 `json:"type" validate:"required,oneof=quick deep"`
	Ports   []int                  `json:"ports,omitempty" validate:"omitempty,dive,gt=0,lte=65535"`
	Options *deepscan.DepthOptions `json:"options,omitempty"`
}

// LayoutRequest is the body of POST /api/v1/topology/layout. Edges are
// derived from node addressing when omitted.
type LayoutRequest struct {
	Nodes []topology.NetworkNode `json:"nodes" validate:"required,min=1"`
	Edges []topology.NetworkEdge `json:"edges,omitempty"`
}

// ScheduleRequest is the body of POST /api/v1/schedules.
type ScheduleRequest struct {
	Name   string `json:"name" validate:"required"`
	Cron   string `json:"cron" validate:"required"`
	Target string `json:"target" validate:"required"`
	Type   string `json:"type" validate:"required,oneof=quick deep"`
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.API.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	if err := s.validate.Struct(into); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("validation failed: %w", err))
		return false
	}
	return true
}

// createScanHandler runs a scan synchronously and returns the terminal
// result. Progress for in-flight scans is observable from other clients
// through the event stream and GET /scans/{id}.
func (s *Server) createScanHandler(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	target := scanning.ScanTarget{Ports: req.Ports}
	if net.ParseIP(req.Target) != nil {
		target.IPAddress = req.Target
	} else {
		target.HostName = req.Target
	}

	switch scanning.ScanType(req.Type) {
	case scanning.TypeDeep:
		var opts deepscan.DepthOptions
		if req.Options != nil {
			opts = *req.Options
		}
		result := s.orchestrator.StartDeepScan(r.Context(), target, opts)
		s.writeJSON(w, http.StatusOK, result)
	default:
		result := s.orchestrator.StartQuickScan(r.Context(), target)
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) listScansHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"active": s.orchestrator.ActiveScans(),
	})
}

func (s *Server) scanProgressHandler(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["id"]
	progress, err := s.orchestrator.GetProgress(scanID)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *Server) cancelScanHandler(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["id"]
	if !s.orchestrator.Cancel(scanID) {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("no active scan %q", scanID))
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"scan_id": scanID,
		"status":  "cancelling",
	})
}

func (s *Server) topologyLayoutHandler(w http.ResponseWriter, r *http.Request) {
	var req LayoutRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	edges := req.Edges
	if len(edges) == 0 {
		edges = topology.BuildEdges(req.Nodes)
	}

	nodes := s.layout.ComputePositions(req.Nodes, edges)
	document := topology.BuildDocument(topology.TopologyResult{Nodes: nodes, Edges: edges})

	s.bus.Publish(events.NewTopologyUpdated("api", len(nodes), len(edges), 0))
	s.writeJSON(w, http.StatusOK, document)
}

func (s *Server) createScheduleHandler(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	target := scanning.ScanTarget{}
	if net.ParseIP(req.Target) != nil {
		target.IPAddress = req.Target
	} else {
		target.HostName = req.Target
	}

	id, err := s.scheduler.Add(req.Name, req.Cron, target, scanning.ScanType(req.Type))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

func (s *Server) listSchedulesHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"schedules": s.scheduler.List(),
	})
}

func (s *Server) removeScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid schedule id: %w", err))
		return
	}
	if !s.scheduler.Remove(id) {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("no schedule %s", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"uptime":       time.Since(s.startTime).String(),
		"active_scans": len(s.orchestrator.ActiveScans()),
		"timestamp":    time.Now().UTC(),
	})
}
