package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// StreamConfig configures the transaction stream client.
type StreamConfig struct {
	URL               string        `json:"url"`
	ReconnectDelay    time.Duration `json:"reconnect_delay"`
	MaxReconnectDelay time.Duration `json:"max_reconnect_delay"`
	HandshakeTimeout  time.Duration `json:"handshake_timeout"`
}

// DefaultStreamConfig returns the stock stream client settings.
func DefaultStreamConfig(url string) *StreamConfig {
	return &StreamConfig{
		URL:               url,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 60 * time.Second,
		HandshakeTimeout:  30 * time.Second,
	}
}

// streamMessage is the wire format of one observation on the stream.
type streamMessage struct {
	TxHash        string    `json:"txHash"`
	From          string    `json:"from"`
	FeedID        string    `json:"feedId"`
	ExpectedPrice *big.Int  `json:"expectedPrice"`
	ObservedPrice *big.Int  `json:"observedPrice"`
	ObservedAt    time.Time `json:"observedAt"`
	GasPrice      *big.Int  `json:"gasPrice"`
	Value         *big.Int  `json:"value"`
	BlockNumber   uint64    `json:"blockNumber"`
}

// StreamStats reports stream client activity.
type StreamStats struct {
	Connected  bool   `json:"connected"`
	Received   uint64 `json:"received"`
	Malformed  uint64 `json:"malformed"`
	Reconnects uint64 `json:"reconnects"`
}

// StreamClient consumes transaction observations from an upstream websocket
// feed and submits them to the evaluation pipeline. Connection loss triggers
// reconnection with exponential backoff, reset after a successful read.
type StreamClient struct {
	config   *StreamConfig
	pipeline interfaces.ObservationPipeline
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	connected  atomic.Bool
	received   atomic.Uint64
	malformed  atomic.Uint64
	reconnects atomic.Uint64
}

// NewStreamClient creates a stream client feeding the given pipeline.
func NewStreamClient(config *StreamConfig, pipeline interfaces.ObservationPipeline, logger *zap.Logger) (*StreamClient, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("%w: stream URL is required", types.ErrInvalidInput)
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = time.Second
	}
	if config.MaxReconnectDelay < config.ReconnectDelay {
		config.MaxReconnectDelay = 60 * time.Second
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamClient{
		config:   config,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// Start launches the connect/read loop.
func (c *StreamClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("stream client is already running")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	go c.run(runCtx)
	return nil
}

// Stop disconnects and waits for the read loop to exit.
func (c *StreamClient) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return fmt.Errorf("stream client is not running")
	}
	c.running = false
	c.cancel()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current stream counters.
func (c *StreamClient) Stats() *StreamStats {
	return &StreamStats{
		Connected:  c.connected.Load(),
		Received:   c.received.Load(),
		Malformed:  c.malformed.Load(),
		Reconnects: c.reconnects.Load(),
	}
}

func (c *StreamClient) run(ctx context.Context) {
	defer close(c.done)

	delay := c.config.ReconnectDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("stream connect failed",
				zap.String("url", c.config.URL),
				zap.Duration("retry_in", delay),
				zap.Error(err))
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextDelay(delay, c.config.MaxReconnectDelay)
			c.reconnects.Add(1)
			continue
		}

		c.connected.Store(true)
		c.logger.Info("stream connected", zap.String("url", c.config.URL))
		err = c.readLoop(ctx, conn)
		conn.Close()
		c.connected.Store(false)

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("stream disconnected", zap.Error(err))
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = nextDelay(delay, c.config.MaxReconnectDelay)
		c.reconnects.Add(1)
	}
}

func (c *StreamClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
		ReadBufferSize:   16 * 1024,
		WriteBufferSize:  16 * 1024,
	}
	conn, _, err := dialer.DialContext(ctx, c.config.URL, http.Header{
		"User-Agent": []string{"mev-shield/1.0"},
	})
	return conn, err
}

// readLoop consumes messages until the connection breaks or ctx is done. The
// watchdog goroutine closes the connection on cancellation so ReadMessage
// unblocks.
func (c *StreamClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(ctx, data)
	}
}

func (c *StreamClient) handleMessage(ctx context.Context, data []byte) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.malformed.Add(1)
		c.logger.Debug("malformed stream message", zap.Error(err))
		return
	}
	if msg.FeedID == "" || msg.ExpectedPrice == nil || msg.ObservedPrice == nil {
		c.malformed.Add(1)
		return
	}
	c.received.Add(1)

	from := common.HexToAddress(msg.From)
	obs := &interfaces.Observation{
		Tx: &types.Transaction{
			Hash:        common.HexToHash(msg.TxHash),
			From:        from,
			Value:       msg.Value,
			GasPrice:    msg.GasPrice,
			Timestamp:   msg.ObservedAt,
			BlockNumber: msg.BlockNumber,
		},
		FeedID:        msg.FeedID,
		ExpectedPrice: msg.ExpectedPrice,
		Observed: types.PriceObservation{
			FeedID:    msg.FeedID,
			Price:     msg.ObservedPrice,
			Timestamp: msg.ObservedAt,
		},
	}
	if err := c.pipeline.Submit(ctx, obs); err != nil {
		c.logger.Warn("observation submit failed",
			zap.String("feed", msg.FeedID),
			zap.Error(err))
	}
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		next = max
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
