package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/hitoshi/platfeed/internal/auth"
	"github.com/hitoshi/platfeed/internal/middleware"
	"github.com/hitoshi/platfeed/internal/model"
)

// サーバーが接続個別に返すイベント名。
const (
	EventJoined = "joined"
	EventError  = "error"
)

// frameTypeJoinRoom はグループ参加を要求するクライアントフレームの種別。
const frameTypeJoinRoom = "joinRoom"

// クライアントからはjoinRoomのみを受け付けるため、読み込みサイズを小さく制限する。
const maxClientFrameBytes = 4096

// ClaimVerifier はアクセストークンを検証してClaimを返す。
type ClaimVerifier interface {
	Verify(token string) (model.Claim, error)
}

// HandlerConfig はWebSocketハンドラーの設定を保持する。
type HandlerConfig struct {
	WriteTimeout   time.Duration // 1フレームの書き込みタイムアウト
	OriginPatterns []string      // 許可するOriginのパターン。空の場合は同一オリジンのみ
}

// clientFrame はクライアントから受け取るメッセージ。
type clientFrame struct {
	Type     string `json:"type"`
	Platform string `json:"platform"`
}

// joinedPayload はjoinedイベントのデータ。
type joinedPayload struct {
	Platform model.Platform `json:"platform"`
}

// Handler はリアルタイム配信用のWebSocketエンドポイントを提供する。
type Handler struct {
	hub      *Hub
	verifier ClaimVerifier
	cfg      HandlerConfig
	logger   *slog.Logger
}

// NewHandler はHandlerを生成する。
func NewHandler(hub *Hub, verifier ClaimVerifier, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hub: hub, verifier: verifier, cfg: cfg, logger: logger}
}

// ServeHTTP はトークンを検証してからWebSocketにアップグレードする。
// トークンはtokenクエリパラメータまたはAuthorizationヘッダーで受け取る。
// 検証に失敗した場合はアップグレードせずに401を返す。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r)
	}

	claim, err := h.verifier.Verify(token)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("user_id", claim.UserID),
			slog.String("error", err.Error()),
		)
		return
	}
	conn.SetReadLimit(maxClientFrameBytes)

	h.serve(r.Context(), conn, claim)
}

// serve は接続が閉じるまで送信キューのフレームを書き出す。
// 接続への書き込みはこのゴルーチンだけが行う。
func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, claim model.Claim) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := h.hub.Register(claim)
	defer h.hub.Leave(client)

	logger := h.logger.With(
		slog.String("connection_id", client.ID()),
		slog.String("user_id", claim.UserID),
	)
	logger.Info("realtime connection opened")

	readErr := make(chan error, 1)
	go h.readLoop(ctx, conn, client, readErr)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case err := <-readErr:
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Info("realtime connection closed by client")
			} else {
				logger.Info("realtime connection read ended", slog.String("error", err.Error()))
			}
			conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-client.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case frame := <-client.Send():
			writeCtx, cancelWrite := context.WithTimeout(ctx, h.cfg.WriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancelWrite()
			if err != nil {
				logger.Warn("realtime write failed", slog.String("error", err.Error()))
				conn.Close(websocket.StatusInternalError, "write_failed")
				return
			}
		}
	}
}

// readLoop はクライアントフレームを読み込んで処理する。
// 不正なフレームにはerrorイベントを返し、接続は維持する。
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client, readErr chan<- error) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			readErr <- err
			return
		}
		if typ != websocket.MessageText {
			h.reply(client, EventError, middleware.NewErrorResponseBody(model.NewInvalidRequestError("テキストフレームのみ受け付けます")))
			continue
		}

		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			h.reply(client, EventError, middleware.NewErrorResponseBody(model.NewInvalidRequestError("JSONの形式が不正です")))
			continue
		}

		switch f.Type {
		case frameTypeJoinRoom:
			h.join(client, f.Platform)
		default:
			h.reply(client, EventError, middleware.NewErrorResponseBody(model.NewInvalidRequestError("未知のメッセージ種別です: "+f.Type)))
		}
	}
}

// join は接続を要求されたプラットフォームのグループに移す。
// Claimのプラットフォーム以外のグループには参加できない。
func (h *Handler) join(client *Client, raw string) {
	platform, err := model.ParsePlatform(raw)
	if err == nil {
		err = auth.AuthorizePlatform(client.Claim().Platform, platform)
	}
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			apiErr = model.NewInternalError()
		}
		h.logger.Warn("realtime join rejected",
			slog.String("connection_id", client.ID()),
			slog.String("user_id", client.Claim().UserID),
			slog.String("requested_platform", raw),
			slog.String("code", apiErr.Code),
		)
		h.reply(client, EventError, middleware.NewErrorResponseBody(apiErr))
		return
	}

	h.hub.Join(client, platform)
	h.logger.Info("realtime connection joined",
		slog.String("connection_id", client.ID()),
		slog.String("user_id", client.Claim().UserID),
		slog.String("platform", string(platform)),
	)
	h.reply(client, EventJoined, joinedPayload{Platform: platform})
}

// reply は接続個別の応答を送信キューに積む。キューが満杯の場合は応答を捨てる。
func (h *Handler) reply(client *Client, event string, payload any) {
	if !h.hub.SendTo(client, event, payload) {
		h.logger.Warn("realtime reply dropped",
			slog.String("connection_id", client.ID()),
			slog.String("event", event),
		)
	}
}
