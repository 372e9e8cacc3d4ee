package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
)

// stubPipeline records submitted observations.
type stubPipeline struct {
	mu   sync.Mutex
	obs  []*interfaces.Observation
	fail bool
}

func (p *stubPipeline) Start(ctx context.Context) error { return nil }
func (p *stubPipeline) Stop(ctx context.Context) error  { return nil }
func (p *stubPipeline) Stats() *interfaces.PipelineStats {
	return &interfaces.PipelineStats{}
}

func (p *stubPipeline) Submit(ctx context.Context, obs *interfaces.Observation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return context.Canceled
	}
	p.obs = append(p.obs, obs)
	return nil
}

func (p *stubPipeline) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.obs)
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamServer sends each payload once per connection, then holds the
// connection open until the test ends.
func streamServer(t *testing.T, payloads ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func observationJSON(feed string) string {
	return `{
		"txHash": "0x01",
		"from": "0x1111111111111111111111111111111111111111",
		"feedId": "` + feed + `",
		"expectedPrice": 2000,
		"observedPrice": 2100,
		"observedAt": "` + time.Now().Format(time.RFC3339) + `",
		"gasPrice": 100,
		"value": 0
	}`
}

func TestStreamClient_RequiresURL(t *testing.T) {
	_, err := NewStreamClient(nil, &stubPipeline{}, nil)
	assert.Error(t, err)

	_, err = NewStreamClient(&StreamConfig{}, &stubPipeline{}, nil)
	assert.Error(t, err)
}

func TestStreamClient_SubmitsObservations(t *testing.T) {
	server := streamServer(t, observationJSON("ETH"), observationJSON("BTC"))
	pipeline := &stubPipeline{}

	client, err := NewStreamClient(DefaultStreamConfig(wsURL(server)), pipeline, nil)
	require.NoError(t, err)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	assert.Eventually(t, func() bool { return pipeline.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	pipeline.mu.Lock()
	defer pipeline.mu.Unlock()
	assert.Equal(t, "ETH", pipeline.obs[0].FeedID)
	assert.Equal(t, "BTC", pipeline.obs[1].FeedID)
	assert.Equal(t, "ETH", pipeline.obs[0].Observed.FeedID)
	require.NotNil(t, pipeline.obs[0].ExpectedPrice)
	assert.Equal(t, int64(2000), pipeline.obs[0].ExpectedPrice.Int64())

	stats := client.Stats()
	assert.Equal(t, uint64(2), stats.Received)
	assert.Zero(t, stats.Malformed)
}

func TestStreamClient_SkipsMalformedMessages(t *testing.T) {
	server := streamServer(t, "not json", `{"feedId":""}`, observationJSON("ETH"))
	pipeline := &stubPipeline{}

	client, err := NewStreamClient(DefaultStreamConfig(wsURL(server)), pipeline, nil)
	require.NoError(t, err)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	assert.Eventually(t, func() bool { return pipeline.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(2), client.Stats().Malformed)
}

func TestStreamClient_StartStop(t *testing.T) {
	server := streamServer(t)
	client, err := NewStreamClient(DefaultStreamConfig(wsURL(server)), &stubPipeline{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	assert.Error(t, client.Start(ctx), "double start must fail")
	require.NoError(t, client.Stop(ctx))
	assert.Error(t, client.Stop(ctx), "double stop must fail")
}

func TestStreamClient_ReconnectsAfterDrop(t *testing.T) {
	var conns int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		first := conns == 1
		mu.Unlock()
		if first {
			// Drop the first connection immediately to force a reconnect.
			conn.Close()
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(observationJSON("ETH")))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	cfg := DefaultStreamConfig(wsURL(server))
	cfg.ReconnectDelay = 10 * time.Millisecond
	pipeline := &stubPipeline{}

	client, err := NewStreamClient(cfg, pipeline, nil)
	require.NoError(t, err)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	assert.Eventually(t, func() bool { return pipeline.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, client.Stats().Reconnects, uint64(1))
}

func TestNextDelay_Caps(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextDelay(time.Second, time.Minute))
	assert.Equal(t, time.Minute, nextDelay(45*time.Second, time.Minute))
}
