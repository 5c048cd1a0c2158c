package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowAndWindowReset(t *testing.T) {
	l := New(2, time.Minute)
	defer l.Stop()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatal("first two hits should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("third hit should be blocked")
	}

	now = now.Add(time.Minute + time.Second)
	if !l.Allow("k") {
		t.Fatal("hit after window should be allowed")
	}
	if !l.Allow("k") {
		t.Fatal("second hit in the new window should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("third hit in the new window should be blocked")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()
	l.Allow("k")
	l.Reset("k")
	if !l.Allow("k") {
		t.Fatal("hit after Reset should be allowed")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "9.9.9.9:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": " 3.3.3.3 "}, "9.9.9.9:1", "3.3.3.3"},
		{"remote with port", nil, "4.4.4.4:5555", "4.4.4.4"},
		{"remote without port", nil, "5.5.5.5", "5.5.5.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/auth", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_PerEmail(t *testing.T) {
	ll := NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	defer ll.Stop()
	r := httptest.NewRequest("POST", "/auth", nil)

	for i := 0; i < 2; i++ {
		if err := ll.Check(r, "User@Example.com"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := ll.Check(r, " user@example.com "); err != ErrTooManyForAccount {
		t.Fatalf("err = %v, want ErrTooManyForAccount", err)
	}
	ll.ResetEmail("user@example.com")
	if err := ll.Check(r, "user@example.com"); err != nil {
		t.Fatalf("after reset: %v", err)
	}
}

func TestLoginLimiter_PerIP(t *testing.T) {
	ll := NewLoginLimiterWithConfig(1, time.Minute, 100, time.Minute)
	defer ll.Stop()
	r := httptest.NewRequest("POST", "/auth", nil)

	if err := ll.Check(r, "a@example.com"); err != nil {
		t.Fatal(err)
	}
	if err := ll.Check(r, "b@example.com"); err != ErrTooManyFromIP {
		t.Fatalf("err = %v, want ErrTooManyFromIP", err)
	}
}
