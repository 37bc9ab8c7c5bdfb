// Package realtime はプラットフォーム単位のファンアウトグループとWebSocket配信を提供する。
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/platfeed/internal/model"
)

// Frame はサーバーからクライアントへ送るメッセージ。
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Metrics はハブの配信状況を記録する。
type Metrics interface {
	RecordEventPublished(event string, recipients int)
	RecordEventDropped(event string)
	SetRealtimeConnections(count int)
}

// Client はハブに登録された1つのリアルタイム接続。
// 送信キューは有界で、満杯の場合は新しいイベントを破棄する。
type Client struct {
	id    string
	claim model.Claim
	send  chan []byte
	done  chan struct{}
}

// ID は接続IDを返す。
func (c *Client) ID() string { return c.id }

// Claim は接続時に検証したClaimを返す。
func (c *Client) Claim() model.Claim { return c.claim }

// Send は送信待ちのエンコード済みフレームを返す。
func (c *Client) Send() <-chan []byte { return c.send }

// Done は接続がハブから外されたときにクローズされる。
func (c *Client) Done() <-chan struct{} { return c.done }

// Hub はプラットフォームごとのファンアウトグループを管理する。
// 1つの接続は同時に高々1つのグループにのみ属する。
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	groups     map[model.Platform]map[string]*Client
	membership map[string]model.Platform

	bufferSize int
	metrics    Metrics
	logger     *slog.Logger
}

// NewHub はHubを生成する。bufferSizeは接続ごとの送信キュー長。metricsはnilでもよい。
func NewHub(bufferSize int, metrics Metrics, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		groups:     make(map[model.Platform]map[string]*Client),
		membership: make(map[string]model.Platform),
		bufferSize: bufferSize,
		metrics:    metrics,
		logger:     logger,
	}
}

// Register は新しい接続を登録する。登録直後はどのグループにも属さない。
func (h *Hub) Register(claim model.Claim) *Client {
	c := &Client{
		id:    uuid.NewString(),
		claim: claim,
		send:  make(chan []byte, h.bufferSize),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetRealtimeConnections(count)
	return c
}

// Join は接続をプラットフォームのグループに加える。
// 既に別のグループに属していた場合はそのグループから外す。
func (h *Hub) Join(c *Client, platform model.Platform) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return
	}
	if prev, ok := h.membership[c.id]; ok {
		if prev == platform {
			return
		}
		h.removeFromGroupLocked(c.id, prev)
	}

	group, ok := h.groups[platform]
	if !ok {
		group = make(map[string]*Client)
		h.groups[platform] = group
	}
	group[c.id] = c
	h.membership[c.id] = platform
}

// Leave は接続をグループとハブから外す。何度呼んでもよい。
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	if platform, ok := h.membership[c.id]; ok {
		h.removeFromGroupLocked(c.id, platform)
	}
	delete(h.clients, c.id)
	close(c.done)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetRealtimeConnections(count)
}

func (h *Hub) removeFromGroupLocked(id string, platform model.Platform) {
	delete(h.membership, id)
	group := h.groups[platform]
	delete(group, id)
	if len(group) == 0 {
		delete(h.groups, platform)
	}
}

// Publish はプラットフォームのグループに属する全接続にイベントを配信する。
// 送信キューが満杯の接続には配信せず、その接続だけイベントを取りこぼす。
// 呼び出し元をブロックせず、エラーも返さない。
func (h *Hub) Publish(platform model.Platform, event string, payload any) {
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("failed to encode realtime event",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.groups[platform] {
		select {
		case c.send <- frame:
			delivered++
		default:
			h.metrics.RecordEventDropped(event)
			h.logger.Warn("realtime send buffer full, event dropped",
				slog.String("connection_id", c.id),
				slog.String("user_id", c.claim.UserID),
				slog.String("platform", string(platform)),
				slog.String("event", event),
			)
		}
	}
	h.metrics.RecordEventPublished(event, delivered)
}

// SendTo は1つの接続にだけフレームを送る。キューが満杯の場合はfalseを返す。
// 接続個別の応答もPublishと同じ送信キューを通るため、書き込みは1つのゴルーチンに限られる。
func (h *Hub) SendTo(c *Client, event string, payload any) bool {
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("failed to encode realtime reply",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		h.metrics.RecordEventDropped(event)
		return false
	}
}

// ConnectionCount は登録中の接続数を返す。
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupSize はプラットフォームのグループに属する接続数を返す。
func (h *Hub) GroupSize(platform model.Platform) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[platform])
}

// Close は全接続をハブから外す。各接続のDoneがクローズされる。
func (h *Hub) Close() {
	h.mu.Lock()
	for id, c := range h.clients {
		close(c.done)
		delete(h.clients, id)
	}
	h.groups = make(map[model.Platform]map[string]*Client)
	h.membership = make(map[string]model.Platform)
	h.mu.Unlock()

	h.metrics.SetRealtimeConnections(0)
}

type noopMetrics struct{}

func (noopMetrics) RecordEventPublished(string, int) {}
func (noopMetrics) RecordEventDropped(string)        {}
func (noopMetrics) SetRealtimeConnections(int)       {}
