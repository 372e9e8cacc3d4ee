package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mev-shield/tx-protection-engine/internal/config"
	"github.com/mev-shield/tx-protection-engine/pkg/detector"
	"github.com/mev-shield/tx-protection-engine/pkg/history"
	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/metrics"
	"github.com/mev-shield/tx-protection-engine/pkg/protection"
	"github.com/mev-shield/tx-protection-engine/pkg/scoring"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

type testHarness struct {
	server      *Server
	ts          *httptest.Server
	viewerKey   string
	operatorKey string
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	evaluator := detector.NewEvaluator(nil, history.NewGasTracker(100), history.NewPriceBook(), nil)
	scorer := scoring.NewScorer(scoring.DefaultWeights())
	executor, err := protection.NewSimulatedExecutor(100)
	require.NoError(t, err)
	alerts := metrics.NewAlertManager(nil, nil)
	engine := protection.NewEngine(protection.NewMemoryConfigStore(), evaluator, executor, nil,
		protection.WithAlertSink(alerts))

	cfg := &config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	server := NewServer(cfg, evaluator, scorer, engine, nil, alerts, nil, nil)

	viewerKey, err := server.Auth().AddUser("viewer", "Viewer", RoleViewer)
	require.NoError(t, err)
	operatorKey, err := server.Auth().AddUser("operator", "Operator", RoleOperator)
	require.NoError(t, err)

	ts := httptest.NewServer(server.httpServer.Handler)
	t.Cleanup(ts.Close)

	return &testHarness{server: server, ts: ts, viewerKey: viewerKey, operatorKey: operatorKey}
}

func (h *testHarness) request(t *testing.T, method, path, key string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, reader)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func evaluateBody(feed string, expected, observed, gas int64) map[string]interface{} {
	return map[string]interface{}{
		"feedId":        feed,
		"expectedPrice": expected,
		"observedPrice": observed,
		"observedAt":    time.Now().Format(time.RFC3339),
		"gasPrice":      gas,
	}
}

func TestServer_HealthIsPublic(t *testing.T) {
	h := newHarness(t)
	resp := h.request(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RequiresAuth(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "GET", "/api/v1/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.request(t, "GET", "/api/v1/status", "not-a-key", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.request(t, "GET", "/api/v1/status", h.viewerKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Evaluate(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "POST", "/api/v1/evaluate", h.viewerKey, evaluateBody("ETH", 2000, 2000, 100))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result interfaces.EvaluationResult
	decodeBody(t, resp, &result)
	assert.False(t, result.IsThreat)
	assert.Equal(t, types.ThreatNone, result.Threat)
}

func TestServer_EvaluateDetectsSandwich(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "POST", "/api/v1/evaluate", h.viewerKey, evaluateBody("ETH", 2000, 2200, 100))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result interfaces.EvaluationResult
	decodeBody(t, resp, &result)
	assert.True(t, result.IsThreat)
	assert.Equal(t, types.ThreatSandwich, result.Threat)
	assert.Equal(t, uint64(1000), result.ScoreBp)
}

func TestServer_EvaluateStaleOracle(t *testing.T) {
	h := newHarness(t)

	body := evaluateBody("ETH", 2000, 2000, 100)
	body["observedAt"] = time.Now().Add(-10 * time.Minute).Format(time.RFC3339)
	resp := h.request(t, "POST", "/api/v1/evaluate", h.viewerKey, body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestServer_Score(t *testing.T) {
	h := newHarness(t)

	body := evaluateBody("ETH", 2000, 2200, 100)
	body["value"] = 0
	resp := h.request(t, "POST", "/api/v1/score", h.viewerKey, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var score scorePayload
	decodeBody(t, resp, &score)
	assert.True(t, score.Findings.Sandwich)
	assert.Equal(t, 25, score.Score)
	assert.Equal(t, types.SeverityLow, score.Severity)
}

func TestServer_ConfigureRoundtrip(t *testing.T) {
	h := newHarness(t)
	owner := "0x1111111111111111111111111111111111111111"

	resp := h.request(t, "POST", "/api/v1/config", h.viewerKey, map[string]interface{}{
		"owner":         owner,
		"strategy":      "revert",
		"maxSlippageBp": 300,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.request(t, "GET", "/api/v1/config/"+owner, h.viewerKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cfg types.ProtectionConfig
	decodeBody(t, resp, &cfg)
	assert.True(t, cfg.Active)
	assert.Equal(t, types.StrategyRevert, cfg.Strategy)
	assert.Equal(t, uint64(300), cfg.MaxSlippageBp)
}

func TestServer_ConfigureRejectsExcessiveSlippage(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "POST", "/api/v1/config", h.viewerKey, map[string]interface{}{
		"owner":         "0x1111111111111111111111111111111111111111",
		"strategy":      "revert",
		"maxSlippageBp": 1500,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_GetConfigUnknownOwner(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "GET", "/api/v1/config/0x2222222222222222222222222222222222222222", h.viewerKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.request(t, "GET", "/api/v1/config/nonsense", h.viewerKey, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ProtectSwapNotConfigured(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "POST", "/api/v1/protect", h.viewerKey, map[string]interface{}{
		"owner": "0x3333333333333333333333333333333333333333",
		"params": map[string]interface{}{
			"feedId": "ETH",
		},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_AdminRequiresOperator(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "GET", "/api/v1/admin/thresholds", h.viewerKey, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = h.request(t, "GET", "/api/v1/admin/thresholds", h.operatorKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_UpdateThresholds(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "PUT", "/api/v1/admin/thresholds", h.operatorKey, &thresholdsPayload{
		RiskThresholdBp:        300,
		MinPriceDeltaBp:        50,
		FrontrunGasMultiplier:  150,
		ArbitrageWindowSeconds: 60,
		OracleFreshnessSeconds: 600,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.request(t, "GET", "/api/v1/admin/thresholds", h.operatorKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got thresholdsPayload
	decodeBody(t, resp, &got)
	assert.Equal(t, uint64(300), got.RiskThresholdBp)
	assert.Equal(t, int64(60), got.ArbitrageWindowSeconds)

	// A 300bp threshold now flags a 400bp slippage the default would allow.
	evalResp := h.request(t, "POST", "/api/v1/evaluate", h.viewerKey, evaluateBody("ETH", 10000, 10400, 100))
	require.Equal(t, http.StatusOK, evalResp.StatusCode)
	var result interfaces.EvaluationResult
	decodeBody(t, evalResp, &result)
	assert.True(t, result.IsThreat)
	assert.Equal(t, types.ThreatSandwich, result.Threat)
}

func TestServer_UpdateThresholdsRejectsInvalid(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "PUT", "/api/v1/admin/thresholds", h.operatorKey, &thresholdsPayload{
		RiskThresholdBp:        500,
		FrontrunGasMultiplier:  50,
		ArbitrageWindowSeconds: 30,
		OracleFreshnessSeconds: 300,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_EmergencyStop(t *testing.T) {
	h := newHarness(t)
	owner := "0x4444444444444444444444444444444444444444"

	resp := h.request(t, "POST", "/api/v1/admin/emergency-stop/"+owner, h.operatorKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "unconfigured owner")

	resp = h.request(t, "POST", "/api/v1/config", h.viewerKey, map[string]interface{}{
		"owner":         owner,
		"strategy":      "delay",
		"maxSlippageBp": 100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.request(t, "POST", "/api/v1/admin/emergency-stop/"+owner, h.operatorKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.request(t, "GET", "/api/v1/config/"+owner, h.viewerKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cfg types.ProtectionConfig
	decodeBody(t, resp, &cfg)
	assert.False(t, cfg.Active)
}

func TestServer_AlertsEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "GET", "/api/v1/alerts?limit=5", h.viewerKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Alerts []*types.Alert `json:"alerts"`
		Count  int            `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Zero(t, body.Count)

	resp = h.request(t, "GET", "/api/v1/alerts?limit=-1", h.viewerKey, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RateLimitHeaders(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, "GET", "/api/v1/status", h.viewerKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "100", resp.Header.Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
}

func TestRateLimiter_Exhaustion(t *testing.T) {
	rl := NewRateLimiter(RateLimit{Requests: 2, Window: time.Minute, BurstSize: 0})

	for i := 0; i < 2; i++ {
		allowed, _ := rl.Allow("client")
		require.True(t, allowed, fmt.Sprintf("request %d", i))
	}
	allowed, remaining := rl.Allow("client")
	assert.False(t, allowed)
	assert.Zero(t, remaining)

	// Other clients are unaffected.
	allowed, _ = rl.Allow("other")
	assert.True(t, allowed)
}

func TestAuthService_RoleHierarchy(t *testing.T) {
	assert.True(t, hasRequiredRole(RoleAdmin, RoleViewer))
	assert.True(t, hasRequiredRole(RoleOperator, RoleOperator))
	assert.False(t, hasRequiredRole(RoleViewer, RoleOperator))
	assert.False(t, hasRequiredRole(UserRole("unknown"), RoleViewer))
}

func TestAuthService_RevokedKey(t *testing.T) {
	auth := NewAuthService(nil)
	key, err := auth.AddUser("u1", "User", RoleViewer)
	require.NoError(t, err)

	_, err = auth.ValidateAPIKey(key)
	require.NoError(t, err)

	require.NoError(t, auth.RevokeAPIKey(key))
	_, err = auth.ValidateAPIKey(key)
	assert.Error(t, err)
}
