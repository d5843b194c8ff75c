package internal

import (
	"encoding/json"
	"log/slog"
)

// Router 把單一 Session 的輸入訊息分派給對應的處理器
//
// 每條連線的讀取迴圈是單執行緒的：同一個 Session 的兩則訊息
// 絕不會並行處理，Session 的狀態機因此不需要自己的鎖。
// 協議錯誤與業務規則拒絕都以 Error 訊息回覆，連線保持開啟。
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter 建立訊息路由器
func NewRouter(registry *Registry, logger *slog.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// Dispatch 處理一則來自 Session 的原始訊息（一行）
func (rt *Router) Dispatch(s *Session, line []byte) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		rt.logger.Warn("無法解析的訊息", "player", s.Nickname, "error", err)
		_ = s.Send(MsgError, "無法解析的訊息")
		return
	}

	switch msg.Type {
	case MsgCreateRoom:
		var p CreateRoomPayload
		if err := msg.DecodeData(&p); err != nil {
			_ = s.Send(MsgError, "房間建立資料錯誤")
			return
		}
		if err := rt.registry.CreateRoom(s, p); err != nil {
			_ = s.Send(MsgError, err.Error())
		}

	case MsgJoinRoom:
		var p JoinRoomPayload
		if err := msg.DecodeData(&p); err != nil {
			_ = s.Send(MsgError, "加入房間資料錯誤")
			return
		}
		if err := rt.registry.JoinRoom(s, p); err != nil {
			_ = s.Send(MsgError, err.Error())
		}

	case MsgRoomList:
		_ = rt.registry.RoomList(s)

	case MsgMyOrder:
		if err := rt.registry.MyOrder(s, msg.Data); err != nil {
			_ = s.Send(MsgError, err.Error())
		}

	case MsgMove:
		rt.registry.RelayMove(s, msg.Data)

	case MsgItemPickup:
		rt.registry.ItemPickup(s, msg.Data)

	case MsgDepositBag:
		rt.registry.DepositBag(s)

	case MsgRequestRematch:
		rt.registry.RequestRematch(s)

	case MsgExitToLobby:
		rt.registry.ExitToLobby(s)

	default:
		rt.logger.Debug("不支援的訊息種類", "player", s.Nickname, "type", int(msg.Type))
		_ = s.Send(MsgError, "不支援的訊息種類")
	}
}
