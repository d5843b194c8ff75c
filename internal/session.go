package internal

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// Transport 一條客戶端連線的訊息通道
//
// 實作必須自行序列化寫入：道具產生器、倒數計時器、
// 拾取處理器都可能同時想通知同一位玩家。
type Transport interface {
	WriteMessage(line []byte) error
	Close() error
}

// Session 一條長連線的玩家身份與比賽狀態
//
// 由連線接受迴圈建立，連線關閉或出錯時銷毀；
// 銷毀時透過 Registry.RemoveSession 觸發房間清理。
type Session struct {
	ID       string
	Nickname string

	// 比賽狀態。一律由所屬房間的鎖保護，
	// Session 不在房間內時不會被讀寫。
	Score        int
	Bag          int
	WantsRematch bool

	transport Transport
	logger    *slog.Logger
}

// NewSession 建立連線 Session
func NewSession(nickname string, transport Transport, logger *slog.Logger) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Nickname:  nickname,
		transport: transport,
		logger:    logger,
	}
}

// Send 送出一則信封訊息，Data 為已編碼字串（或原始字串）
//
// 寫入失敗只記錄不重試：對方多半已經斷線，
// 後續會由讀取迴圈的結束觸發正式清理。
func (s *Session) Send(t MessageType, data string) error {
	line, err := json.Marshal(Message{Type: t, Data: data})
	if err != nil {
		return err
	}
	if err := s.transport.WriteMessage(line); err != nil {
		s.logger.Warn("傳送訊息失敗",
			"player", s.Nickname,
			"type", int(t),
			"error", err)
		return err
	}
	return nil
}

// SendPayload 將 payload 編碼後送出
func (s *Session) SendPayload(t MessageType, payload any) error {
	msg, err := NewMessage(t, payload)
	if err != nil {
		s.logger.Error("編碼訊息失敗", "player", s.Nickname, "type", int(t), "error", err)
		return err
	}
	return s.Send(t, msg.Data)
}

// Close 關閉底層連線
func (s *Session) Close() error {
	return s.transport.Close()
}
