package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ConnectionCounter はリアルタイム接続数を返す。
type ConnectionCounter interface {
	ConnectionCount() int
}

// Pinger はデータストアの疎通を確認する。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler は死活監視用のHTTPハンドラー。
type HealthHandler struct {
	connections ConnectionCounter
	db          Pinger
	now         func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。dbはnilでもよい。
func NewHealthHandler(connections ConnectionCounter, db Pinger) *HealthHandler {
	return &HealthHandler{connections: connections, db: db, now: time.Now}
}

// healthResponse は死活監視のAPIレスポンス。
type healthResponse struct {
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
	ConnectedClients int       `json:"connectedClients"`
	Database         string    `json:"database,omitempty"`
}

// Health はプロセスの稼働状況とリアルタイム接続数を返す。
// DBに到達できない場合は503を返す。
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Message:          "Server is running",
		Timestamp:        h.now().UTC(),
		ConnectedClients: h.connections.ConnectionCount(),
	}

	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			slog.Warn("health check database ping failed", slog.String("error", err.Error()))
			resp.Message = "Database unavailable"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, status, resp)
}
