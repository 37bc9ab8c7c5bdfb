package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePinger struct {
	failures int // 先頭から失敗させる回数
	calls    int
}

func (p *fakePinger) PingContext(ctx context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func fastReadyOptions(attempts int) ReadyOptions {
	return ReadyOptions{
		Attempts:       attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		PingTimeout:    time.Second,
	}
}

func TestWaitReady_SucceedsAfterRetries(t *testing.T) {
	p := &fakePinger{failures: 2}

	if err := WaitReady(context.Background(), p, fastReadyOptions(5)); err != nil {
		t.Fatalf("WaitReady returned error: %v", err)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestWaitReady_GivesUpAfterAttempts(t *testing.T) {
	p := &fakePinger{failures: 100}

	err := WaitReady(context.Background(), p, fastReadyOptions(3))
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestWaitReady_StopsOnContextCancel(t *testing.T) {
	p := &fakePinger{failures: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := fastReadyOptions(10)
	opts.InitialBackoff = time.Hour
	opts.MaxBackoff = time.Hour

	err := WaitReady(ctx, p, opts)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestReadyOptions_Backoff(t *testing.T) {
	opts := ReadyOptions{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := opts.Backoff(tt.failures); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}
