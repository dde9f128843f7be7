package ratelimit

import "testing"

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	rl := NewLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("request over the limit should be denied")
	}
}

func TestLimiter_PerClient(t *testing.T) {
	rl := NewLimiter(1)
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first client should be allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("second client has its own window")
	}
	if rl.ActiveClients() != 2 {
		t.Fatalf("ActiveClients = %d, want 2", rl.ActiveClients())
	}
}

func TestLimiter_ZeroConfigDefaults(t *testing.T) {
	rl := NewLimiter(0)
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Fatal("default limit should allow requests")
	}
}
