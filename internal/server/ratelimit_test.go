package server

import (
	"fmt"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	l := NewLimiter(0.001, 2)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("a") {
		t.Error("third request should be limited")
	}
	if !l.Allow("b") {
		t.Error("hosts must have independent budgets")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("a") {
			t.Fatalf("request %d limited with limiting disabled", i)
		}
	}
}

func TestLimiter_EvictsIdleHosts(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	l := NewLimiter(100, 1)
	l.now = func() time.Time { return clock }
	l.lastSweep = clock

	for i := 0; i < 50; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	if n := l.Len(); n != 50 {
		t.Fatalf("Len = %d, want 50", n)
	}

	tests := []struct {
		name    string
		advance time.Duration
		host    string
		want    int
	}{
		{"no sweep before ttl", idleTTL / 2, "10.0.1.1", 51},
		{"refresh keeps host alive", 0, "10.0.0.7", 51},
		{"sweep drops idle hosts", idleTTL/2 + time.Second, "10.0.1.2", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock = clock.Add(tt.advance)
			l.Allow(tt.host)
			if n := l.Len(); n != tt.want {
				t.Errorf("Len = %d, want %d", n, tt.want)
			}
		})
	}
}
