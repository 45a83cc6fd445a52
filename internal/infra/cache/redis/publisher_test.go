package redis

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"trade_sim/internal/domain"

	"github.com/redis/go-redis/v9"
)

func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestKeys(t *testing.T) {
	tests := []struct {
		prefix      string
		wantLatest  string
		wantChannel string
	}{
		{"", "tradesim:orderbook:BTC-USDT-SWAP:latest", "tradesim:orderbook"},
		{"dev", "dev:orderbook:BTC-USDT-SWAP:latest", "dev:orderbook"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			p := newPublisher(redis.NewClient(&redis.Options{Addr: closedAddr(t)}), ClientConfig{Prefix: tt.prefix})
			defer p.Close()

			if got := p.latestKey("BTC-USDT-SWAP"); got != tt.wantLatest {
				t.Errorf("latestKey = %q, want %q", got, tt.wantLatest)
			}
			if got := p.channel(); got != tt.wantChannel {
				t.Errorf("channel = %q, want %q", got, tt.wantChannel)
			}
		})
	}
}

func TestNewPublisher_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewPublisher(ctx, ClientConfig{Addr: closedAddr(t)})
	if err == nil {
		t.Fatal("expected ping error for unreachable redis")
	}
}

func TestPublish_NilSnapshot(t *testing.T) {
	p := newPublisher(redis.NewClient(&redis.Options{Addr: closedAddr(t)}), ClientConfig{})
	defer p.Close()

	if err := p.Publish(context.Background(), nil); err != nil {
		t.Errorf("nil snapshot should be a no-op, got %v", err)
	}
}

// silentAddr accepts connections but never answers, like a hung server.
func silentAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return l.Addr().String()
}

func TestPublish_Timeout(t *testing.T) {
	snap := &domain.Snapshot{Symbol: "BTC-USDT-SWAP", MidPrice: 100.5}

	tests := []struct {
		name    string
		timeout time.Duration
		bound   time.Duration
	}{
		{"explicit timeout", 100 * time.Millisecond, time.Second},
		{"default timeout", 0, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ClientConfig{Addr: silentAddr(t), Timeout: tt.timeout}
			p := newPublisher(newClient(cfg), cfg)
			defer p.Close()

			start := time.Now()
			err := p.Publish(context.Background(), snap)
			elapsed := time.Since(start)

			if err == nil {
				t.Fatal("expected an error from a server that never replies")
			}
			if elapsed > tt.bound {
				t.Errorf("Publish took %v, want under %v", elapsed, tt.bound)
			}
		})
	}
}

// TestPublish_RoundTrip needs a live server: TRADESIM_TEST_REDIS=localhost:6379.
func TestPublish_RoundTrip(t *testing.T) {
	addr := os.Getenv("TRADESIM_TEST_REDIS")
	if addr == "" {
		t.Skip("TRADESIM_TEST_REDIS not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := NewPublisher(ctx, ClientConfig{Addr: addr, Prefix: "tradesim-test"})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer p.Close()

	symbol := "TEST-" + time.Now().Format("150405.000000")
	defer p.rdb.Del(context.Background(), p.latestKey(symbol))

	if _, err := p.Latest(ctx, symbol); !errors.Is(err, domain.ErrNoOrderBook) {
		t.Fatalf("Latest before publish = %v, want ErrNoOrderBook", err)
	}

	sub := p.rdb.Subscribe(ctx, p.channel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	snap := &domain.Snapshot{
		Exchange: "OKX",
		Symbol:   symbol,
		Asks:     []domain.PriceLevel{{Price: 101, Size: 1}},
		Bids:     []domain.PriceLevel{{Price: 100, Size: 2}},
		MidPrice: 100.5,
	}
	if err := p.Publish(ctx, snap); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := p.Latest(ctx, symbol)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.MidPrice != 100.5 || len(got.Bids) != 1 || got.Bids[0].Size != 2 {
		t.Errorf("stored snapshot = %+v", got)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Channel != p.channel() {
			t.Errorf("message on %q", msg.Channel)
		}
	case <-ctx.Done():
		t.Fatal("no pub/sub message received")
	}
}
