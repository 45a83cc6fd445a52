// Package okx connects to the live L2 order book stream and fails over to a
// substitute source while the stream is unhealthy.
package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
)

const (
	handshakeTimeout = 10 * time.Second
	defaultReadLimit = 1 << 20
)

// Source names reported to OnSourceChange.
const (
	SourceLive = "live"
	SourceMock = "mock"
)

var errNoData = errors.New("session closed before any data")

var _ domain.FeedWorker = (*Worker)(nil)

// Options configures a Worker.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	ReadTimeout    time.Duration
	Breaker        *gobreaker.CircuitBreaker
	Fallback       domain.FeedSource // optional
	Metrics        *infra.Metrics    // optional

	// OnSourceChange is called from the worker goroutine when the active source changes.
	OnSourceChange func(source string)
}

// Worker streams FeedRecords from the websocket feed into the engine inbox.
type Worker struct {
	opts  Options
	inbox chan<- domain.FeedRecord

	conn      *websocket.Conn
	mu        sync.RWMutex
	connected bool
	source    string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a new feed worker
func NewWorker(opts Options, inbox chan<- domain.FeedRecord) *Worker {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.Breaker == nil {
		opts.Breaker = infra.NewFeedBreaker("okx-feed", 3, time.Minute, opts.Metrics)
	}
	return &Worker{opts: opts, inbox: inbox}
}

// Connect starts the connection loop in the background
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Feed worker panic", slog.Any("panic", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.opts.Breaker.State() == gobreaker.StateOpen && w.opts.Fallback != nil {
			w.runFallback(ctx, true)
			continue
		}

		_, err := w.opts.Breaker.Execute(func() (any, error) {
			return nil, w.session(ctx)
		})
		if ctx.Err() != nil {
			return
		}

		switch {
		case rejected(err) && w.opts.Fallback != nil:
			slog.Error("Feed rejected the connection, switching to fallback",
				slog.String("url", w.opts.URL),
				slog.Any("error", err),
			)
			w.runFallback(ctx, false)
			continue
		case err != nil:
			slog.Warn("Feed connection failed",
				slog.String("url", w.opts.URL),
				slog.Any("error", err),
				slog.Duration("retry_in", w.opts.ReconnectDelay),
			)
		default:
			slog.Info("Feed session ended",
				slog.String("url", w.opts.URL),
				slog.Duration("retry_in", w.opts.ReconnectDelay),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.ReconnectDelay):
		}
	}
}

// rejected reports a dial failure that retrying will not fix.
func rejected(err error) bool {
	return errors.Is(err, domain.ErrConnectionFailed) && !domain.IsRetriable(err)
}

// session runs one live connection. It succeeds if at least one message was
// received before the stream ended.
func (w *Worker) session(ctx context.Context) error {
	if err := w.connect(ctx); err != nil {
		return err
	}
	w.setSource(SourceLive)

	received := w.readLoop(ctx)
	if received == 0 && ctx.Err() == nil {
		return domain.NewNetworkError("read", errNoData)
	}
	return nil
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, resp, err := dialer.DialContext(ctx, w.opts.URL, make(http.Header))
	if err != nil {
		// A 4xx handshake means the endpoint refuses us; redialing will not help.
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil &&
			resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return domain.NewFatalNetworkError("dial",
				fmt.Errorf("%w: handshake status %d", domain.ErrConnectionFailed, resp.StatusCode))
		}
		return domain.NewNetworkError("dial", fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err))
	}
	conn.SetReadLimit(defaultReadLimit)

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	slog.Info("Feed connected", slog.String("url", w.opts.URL))
	return nil
}

// readLoop reads until the connection fails and returns the number of messages handled.
func (w *Worker) readLoop(ctx context.Context) int {
	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, w.closeConnection)
	defer stop()

	n := 0
	for {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return n
		}

		conn.SetReadDeadline(time.Now().Add(w.opts.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Feed read failed", slog.Any("error", err))
			}
			w.closeConnection()
			return n
		}
		n++
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(msg []byte) {
	var rec domain.FeedRecord
	if err := json.Unmarshal(msg, &rec); err != nil {
		slog.Error("Invalid JSON received", slog.Any("error", err))
		return
	}
	w.deliver(rec)
}

func (w *Worker) deliver(rec domain.FeedRecord) {
	select {
	case w.inbox <- rec:
	default:
		slog.Warn("Feed inbox full, dropping record", slog.String("timestamp", rec.Timestamp))
	}
}

// runFallback streams from the fallback source. With pollBreaker set it returns
// once the breaker lets a trial through; otherwise it runs until ctx is done or
// the fallback stops.
func (w *Worker) runFallback(ctx context.Context, pollBreaker bool) {
	w.setSource(SourceMock)

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.opts.Fallback.Stream(fctx, w.inbox)
	}()

	ticker := time.NewTicker(w.opts.ReconnectDelay)
	defer ticker.Stop()
	if !pollBreaker {
		ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Fallback source stopped", slog.Any("error", err))
				// Avoid a hot loop if the fallback fails immediately.
				select {
				case <-ctx.Done():
				case <-time.After(w.opts.ReconnectDelay):
				}
			}
			return
		case <-ticker.C:
			if w.opts.Breaker.State() != gobreaker.StateOpen {
				slog.Info("Retrying live feed")
				cancel()
				<-done
				return
			}
		}
	}
}

func (w *Worker) setSource(source string) {
	w.mu.Lock()
	changed := w.source != source
	w.source = source
	w.mu.Unlock()

	if !changed {
		return
	}
	if w.opts.Metrics != nil {
		w.opts.Metrics.SetMockFeed(source == SourceMock)
	}
	if w.opts.OnSourceChange != nil {
		w.opts.OnSourceChange(source)
	}
}

// Source returns the active source name, or "" before the first connection.
func (w *Worker) Source() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.source
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect stops the worker and waits for it to exit
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}

// IsConnected reports whether a live connection is open
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
