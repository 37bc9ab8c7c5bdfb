package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pinger はデータベースの疎通確認を抽象化する。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ReadyOptions は起動時の疎通待ちの設定。
type ReadyOptions struct {
	Attempts       int           // 試行回数の上限
	InitialBackoff time.Duration // 初回の待機時間。失敗ごとに2倍
	MaxBackoff     time.Duration // 待機時間の上限
	PingTimeout    time.Duration // 1回のPingのタイムアウト
}

// DefaultReadyOptions はコンテナ起動直後のDBを待つための設定を返す。
func DefaultReadyOptions() ReadyOptions {
	return ReadyOptions{
		Attempts:       6,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		PingTimeout:    5 * time.Second,
	}
}

// Backoff は連続失敗回数に対する指数バックオフの待機時間を返す。
func (o ReadyOptions) Backoff(failures int) time.Duration {
	delay := o.InitialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > o.MaxBackoff {
			return o.MaxBackoff
		}
	}
	return delay
}

// WaitReady はPingが成功するまで指数バックオフで再試行する。
// 試行回数を使い切るかctxが終了した場合は最後のエラーを返す。
func WaitReady(ctx context.Context, db Pinger, opts ReadyOptions) error {
	attempts := max(opts.Attempts, 1)

	var lastErr error
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := opts.Backoff(i)
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", lastErr.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("database not ready: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("database not ready after %d attempts: %w", attempts, lastErr)
}
