package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/model"
	"github.com/sells-group/gridlink/internal/optimize"
	"github.com/sells-group/gridlink/internal/planner"
	"github.com/sells-group/gridlink/internal/render"
	"github.com/sells-group/gridlink/internal/store"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var sc planner.Scenario
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := sc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := s.planner.Plan(r.Context(), planner.Request{
		Scenario: sc,
		Counties: false,
		Persist:  true,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, plan)
	case optimize.IsInfeasible(err) && plan != nil:
		writeJSON(w, http.StatusUnprocessableEntity, plan)
	case eris.Is(err, optimize.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("server: plan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "plan failed")
	}
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "plan store disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	plans, err := s.store.ListPlans(r.Context(), limit)
	if err != nil {
		zap.L().Error("server: list plans", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list plans failed")
		return
	}
	if plans == nil {
		plans = []model.PlanSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans, "count": len(plans)})
}

// loadPlan fetches the {id} plan, writing the error response when it fails.
func (s *Server) loadPlan(w http.ResponseWriter, r *http.Request) (*model.Plan, bool) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "plan store disabled")
		return nil, false
	}
	id := chi.URLParam(r, "id")
	plan, err := s.store.GetPlan(r.Context(), id)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "plan not found")
			return nil, false
		}
		zap.L().Error("server: get plan", zap.String("plan_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get plan failed")
		return nil, false
	}
	return plan, true
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	if plan, ok := s.loadPlan(w, r); ok {
		writeJSON(w, http.StatusOK, plan)
	}
}

func (s *Server) handleGetPlanGeoJSON(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	data, err := json.Marshal(render.PlanGeoJSON(plan))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode geojson failed")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (s *Server) handleGetPlanMap(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	counties, err := s.planner.Counties(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "county outlines unavailable")
		return
	}
	plan.Counties = counties
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.InteractiveMap(w, render.PlanData(plan), render.PlanOptions(s.cfg.Map)); err != nil {
		zap.L().Error("server: render plan map", zap.String("plan_id", plan.ID), zap.Error(err))
	}
}

func (s *Server) handleInfrastructureMap(w http.ResponseWriter, r *http.Request) {
	in, err := s.planner.LoadInputs(r.Context(), planner.InputOptions{Counties: true})
	if err != nil {
		zap.L().Error("server: load map inputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "load inputs failed")
		return
	}
	data := render.InfrastructureData(in.Substations, in.Plants, in.Counties)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.InteractiveMap(w, data, render.InfrastructureOptions(s.cfg.Map)); err != nil {
		zap.L().Error("server: render infrastructure map", zap.Error(err))
	}
}
