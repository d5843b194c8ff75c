package internal

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSGateway WebSocket 閘道
//
// 對非 TCP 的客戶端（瀏覽器等）提供一模一樣的信封協議：
// 一則訊息一個文字幀，內容與 TCP 的一行完全相同，
// 進來的訊息走同一個 Router、同一套房間邏輯。
//
// 心跳沿用慣例配置：54 秒 Ping、60 秒讀取超時，
// 避開常見代理的 60 秒閾值並留網路延遲的餘量。
type WSGateway struct {
	registry *Registry
	router   *Router
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsMaxMessage = 64 * 1024
)

// NewWSGateway 建立 WebSocket 閘道
func NewWSGateway(registry *Registry, router *Router, logger *slog.Logger) *WSGateway {
	return &WSGateway{
		registry: registry,
		router:   router,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 生產環境應該檢查來源
				return true
			},
		},
	}
}

// ServeWS 升級連線並進入讀取迴圈
func (g *WSGateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	transport := newWSTransport(conn)
	session := NewSession(g.registry.NextNickname(), transport, g.logger)
	g.logger.Info("WebSocket 玩家連線", "player", session.Nickname, "id", session.ID, "remote", conn.RemoteAddr().String())

	done := make(chan struct{})
	go g.pingLoop(transport, done)

	defer func() {
		close(done)
		g.registry.RemoveSession(session)
		_ = session.Close()
		g.logger.Info("WebSocket 玩家斷線", "player", session.Nickname)
	}()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Warn("WebSocket 讀取錯誤", "player", session.Nickname, "error", err)
			}
			return
		}
		if messageType == websocket.TextMessage && len(data) > 0 {
			g.router.Dispatch(session, data)
		}
	}
}

// pingLoop 定期送出 Ping，直到連線結束
func (g *WSGateway) pingLoop(t *wsTransport, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := t.Ping(); err != nil {
				return
			}
		}
	}
}

// wsTransport 一則訊息一個文字幀的 WebSocket 傳輸
//
// 與 tcpTransport 相同：寫入（含 Ping 控制幀）以互斥鎖序列化。
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) WriteMessage(line []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return t.conn.WriteMessage(websocket.TextMessage, line)
}

func (t *wsTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
