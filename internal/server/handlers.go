package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"trade_sim/internal/domain"
)

const maxBodyBytes = 1 << 16

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var params domain.SimulateParams
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	est, err := s.deps.Simulator.Simulate(r.Context(), params)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			slog.Error("Error in simulation API", slog.Any("error", err))
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoOrderBook), errors.Is(err, domain.ErrNoMidPrice):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Performance.Metrics())
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Book.Latest()
	if snap == nil {
		writeError(w, http.StatusNotFound, domain.ErrNoOrderBook)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeError(w, http.StatusNotFound, errors.New("simulation journal disabled"))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	records, err := s.deps.Journal.RecentSimulations(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list simulations", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []domain.SimulationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
