package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// evaluationPayload is the request body for /evaluate and /score.
type evaluationPayload struct {
	FeedID        string    `json:"feedId"`
	ExpectedPrice *big.Int  `json:"expectedPrice"`
	ObservedPrice *big.Int  `json:"observedPrice"`
	ObservedAt    time.Time `json:"observedAt"`
	GasPrice      *big.Int  `json:"gasPrice"`
	Value         *big.Int  `json:"value,omitempty"`
	TxHash        string    `json:"txHash,omitempty"`
}

func (p *evaluationPayload) toRequest() *interfaces.EvaluationRequest {
	return &interfaces.EvaluationRequest{
		FeedID:        p.FeedID,
		ExpectedPrice: p.ExpectedPrice,
		Observed: types.PriceObservation{
			FeedID:    p.FeedID,
			Price:     p.ObservedPrice,
			Timestamp: p.ObservedAt,
		},
		GasPrice: p.GasPrice,
		Now:      time.Now(),
	}
}

// scorePayload is the response body for /score.
type scorePayload struct {
	Score    int                         `json:"score"`
	Severity types.Severity              `json:"severity"`
	Findings interfaces.DetectorFindings `json:"findings"`
	Inline   interfaces.EvaluationResult `json:"inline"`
}

// protectPayload is the request body for /protect.
type protectPayload struct {
	Owner  common.Address        `json:"owner"`
	Params interfaces.SwapParams `json:"params"`
}

// thresholdsPayload mirrors the detector thresholds with durations in
// seconds, to keep the JSON shape operator-friendly.
type thresholdsPayload struct {
	RiskThresholdBp        uint64 `json:"riskThresholdBp"`
	MinPriceDeltaBp        uint64 `json:"minPriceDeltaBp"`
	FrontrunGasMultiplier  uint64 `json:"frontrunGasMultiplier"`
	ArbitrageWindowSeconds int64  `json:"arbitrageWindowSeconds"`
	OracleFreshnessSeconds int64  `json:"oracleFreshnessSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"uptime":    time.Since(s.startedAt).String(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var payload evaluationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	started := time.Now()
	result, err := s.evaluator.Evaluate(r.Context(), payload.toRequest())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.recorder != nil {
		s.recorder.RecordEvaluation(time.Since(started), result)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var payload evaluationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	analysis, err := s.evaluator.Analyze(r.Context(), payload.toRequest())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	tx := &types.Transaction{
		Hash:      common.HexToHash(payload.TxHash),
		Value:     payload.Value,
		GasPrice:  payload.GasPrice,
		Timestamp: time.Now(),
	}
	score := s.scorer.Score(tx, analysis.GasAverage, analysis.Findings)
	if s.recorder != nil {
		s.recorder.RecordAnalyticsScore(score)
	}
	writeJSON(w, http.StatusOK, &scorePayload{
		Score:    score,
		Severity: types.SeverityForScore(score),
		Findings: analysis.Findings,
		Inline:   analysis.Inline,
	})
}

func (s *Server) handleProtectSwap(w http.ResponseWriter, r *http.Request) {
	var payload protectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := s.engine.ProtectSwap(r.Context(), payload.Owner, &payload.Params)
	if err != nil {
		// A blocked swap still carries a meaningful outcome.
		if outcome != nil {
			writeJSON(w, statusForError(err), map[string]interface{}{
				"error":   err.Error(),
				"outcome": outcome,
			})
			return
		}
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var cfg types.ProtectionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.engine.Configure(r.Context(), &cfg); err != nil {
		s.writeEngineError(w, err)
		return
	}
	stored, err := s.engine.GetConfig(cfg.Owner)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	cfg, err := s.engine.GetConfig(addr)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var alerts []*types.Alert
	if s.alerts != nil {
		alerts = s.alerts.RecentAlerts(limit)
	}
	if alerts == nil {
		alerts = []*types.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime":    time.Since(s.startedAt).String(),
		"timestamp": time.Now().UTC(),
	}
	if s.recorder != nil {
		status["engine"] = s.recorder.Snapshot()
	}
	if s.pipeline != nil {
		status["pipeline"] = s.pipeline.Stats()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	admin, ok := s.evaluator.(interfaces.ThresholdAdmin)
	if !ok {
		http.Error(w, "threshold administration not supported", http.StatusNotImplemented)
		return
	}
	cfg := admin.Thresholds()
	writeJSON(w, http.StatusOK, &thresholdsPayload{
		RiskThresholdBp:        cfg.RiskThresholdBp,
		MinPriceDeltaBp:        cfg.MinPriceDeltaBp,
		FrontrunGasMultiplier:  cfg.FrontrunGasMultiplier,
		ArbitrageWindowSeconds: int64(cfg.ArbitrageWindow / time.Second),
		OracleFreshnessSeconds: int64(cfg.OracleFreshness / time.Second),
	})
}

func (s *Server) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	admin, ok := s.evaluator.(interfaces.ThresholdAdmin)
	if !ok {
		http.Error(w, "threshold administration not supported", http.StatusNotImplemented)
		return
	}

	var payload thresholdsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg := &interfaces.DetectorConfig{
		RiskThresholdBp:       payload.RiskThresholdBp,
		MinPriceDeltaBp:       payload.MinPriceDeltaBp,
		FrontrunGasMultiplier: payload.FrontrunGasMultiplier,
		ArbitrageWindow:       time.Duration(payload.ArbitrageWindowSeconds) * time.Second,
		OracleFreshness:       time.Duration(payload.OracleFreshnessSeconds) * time.Second,
	}
	if err := admin.SetThresholds(cfg); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Info("detection thresholds updated",
		zap.Uint64("risk_threshold_bp", cfg.RiskThresholdBp),
		zap.Uint64("min_price_delta_bp", cfg.MinPriceDeltaBp),
		zap.Uint64("gas_multiplier", cfg.FrontrunGasMultiplier))
	writeJSON(w, http.StatusOK, &payload)
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	if err := s.engine.EmergencyStop(r.Context(), addr); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":   addr.Hex(),
		"stopped": true,
	})
}

func addressVar(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusForError maps the engine's sentinel errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput), errors.Is(err, types.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrExpired):
		return http.StatusGone
	case errors.Is(err, types.ErrNotWhitelisted):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, types.ErrStaleOracleData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrThreatDetected), errors.Is(err, types.ErrSlippageExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
