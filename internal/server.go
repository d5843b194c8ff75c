package internal

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Server 遊戲協議的 TCP 伺服器
//
// 每條連線一個讀取 goroutine：阻塞在逐行讀取上，
// 讀到一行交給 Router，讀取結束（斷線或出錯）即觸發清理。
type Server struct {
	registry *Registry
	router   *Router
	logger   *slog.Logger

	listener net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer 建立 TCP 伺服器
func NewServer(registry *Registry, router *Router, logger *slog.Logger) *Server {
	return &Server{
		registry: registry,
		router:   router,
		logger:   logger,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start 開始監聽並在背景接受連線
func (srv *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv.listener = listener

	srv.wg.Add(1)
	go srv.acceptLoop()

	srv.logger.Info("TCP 伺服器啟動", "addr", listener.Addr().String())
	return nil
}

// Addr 實際監聽位址（測試時使用 :0 取得動態埠）
func (srv *Server) Addr() net.Addr {
	return srv.listener.Addr()
}

func (srv *Server) acceptLoop() {
	defer srv.wg.Done()

	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			srv.logger.Warn("接受連線失敗", "error", err)
			continue
		}

		srv.mu.Lock()
		srv.conns[conn] = struct{}{}
		srv.mu.Unlock()

		srv.wg.Add(1)
		go srv.handleConn(conn)
	}
}

// handleConn 單一連線的生命週期：建立 Session、逐行分派、斷線清理
func (srv *Server) handleConn(conn net.Conn) {
	defer srv.wg.Done()

	session := NewSession(srv.registry.NextNickname(), newTCPTransport(conn), srv.logger)
	srv.logger.Info("玩家連線", "player", session.Nickname, "id", session.ID, "remote", conn.RemoteAddr().String())

	defer func() {
		srv.registry.RemoveSession(session)
		_ = session.Close()
		srv.mu.Lock()
		delete(srv.conns, conn)
		srv.mu.Unlock()
		srv.logger.Info("玩家斷線", "player", session.Nickname)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		srv.router.Dispatch(session, line)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		srv.logger.Warn("連線讀取結束", "player", session.Nickname, "error", err)
	}
}

// Stop 關閉監聽與所有連線，等待處理迴圈結束
func (srv *Server) Stop() {
	if srv.listener != nil {
		_ = srv.listener.Close()
	}

	srv.mu.Lock()
	for conn := range srv.conns {
		_ = conn.Close()
	}
	srv.mu.Unlock()

	srv.wg.Wait()
	srv.logger.Info("TCP 伺服器已停止")
}

// tcpTransport 以換行分隔訊息的 TCP 傳輸
//
// 寫入以互斥鎖序列化：計時器、產生器、拾取處理都可能
// 同時要對同一條連線送訊息。
type tcpTransport struct {
	mu   sync.Mutex
	conn net.Conn
}

func newTCPTransport(conn net.Conn) *tcpTransport {
	return &tcpTransport{conn: conn}
}

func (t *tcpTransport) WriteMessage(line []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := t.conn.Write(line); err != nil {
		return err
	}
	_, err := t.conn.Write([]byte{'\n'})
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}
