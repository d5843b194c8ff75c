package internal

import (
	"encoding/json"
	"fmt"
)

// MessageType 訊息種類
//
// 與 Unity 客戶端的 enum 順序一一對應，序列化為整數。
// 新增種類只能往後追加，調動順序會破壞既有客戶端。
type MessageType int

const (
	MsgCreateRoom MessageType = iota
	MsgJoinRoom
	MsgStartGame
	MsgRoomList
	MsgError
	MsgMyOrder
	MsgMove
	MsgItemSpawn
	MsgItemPickup
	MsgItemRemove
	MsgApplyBuff
	MsgScoreUpdate
	MsgBagUpdate
	MsgDepositBag
	MsgRequestRematch
	MsgExitToLobby
	MsgReturnToLobby
	MsgTimerSync
	MsgMatchOver
)

// Message 訊息信封
//
// Data 是字串而非巢狀物件：承載內容本身先被 JSON 編碼成字串，
// 再放進信封（MyOrder、ItemPickup、ItemRemove、TimerSync 等
// 則直接放原始字串）。只在傳輸邊界做這層二次編碼，
// 各處理器拿到的都是強型別的 payload 結構。
type Message struct {
	Type MessageType `json:"Type"`
	Data string      `json:"Data"`
}

// NewMessage 將 payload 編碼進信封的 Data 欄位
func NewMessage(t MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode payload: %w", err)
	}
	return Message{Type: t, Data: string(data)}, nil
}

// DecodeData 將 Data 欄位解碼為強型別的 payload
func (m Message) DecodeData(v any) error {
	if m.Data == "" {
		return fmt.Errorf("empty payload for message type %d", m.Type)
	}
	return json.Unmarshal([]byte(m.Data), v)
}

// CreateRoomPayload 客戶端建立房間的請求（欄位名稱對應 Unity 端）
type CreateRoomPayload struct {
	Name       string `json:"Name"`
	IsPrivate  bool   `json:"IsPrivate"`
	Password   string `json:"Password"`
	MaxPlayers int    `json:"MaxPlayers"`
}

// JoinRoomPayload 客戶端加入房間的請求
type JoinRoomPayload struct {
	RoomName string `json:"roomName"`
	Password string `json:"password"`
}

// StartGamePayload 通知雙方比賽開始
//
// Swap 只用於客戶端鏡像出生角落，伺服器端沒有任何玩法意義。
type StartGamePayload struct {
	RoomName string `json:"roomName"`
	Swap     bool   `json:"swap"`
}

// RoomSummary 房間列表中的單一房間摘要，永遠不包含密碼
type RoomSummary struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
	Current   int    `json:"current"`
	Max       int    `json:"max"`
}

// ItemSpawnPayload 廣播新道具出現
type ItemSpawnPayload struct {
	InstanceID string  `json:"instanceId"`
	ItemID     int     `json:"itemId"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// BuffPayload 只發給拾取者本人的增益效果
type BuffPayload struct {
	Type     string  `json:"type"`
	Value    float64 `json:"value"`
	Duration float64 `json:"duration"`
}

// ScorePayload 分數更新（who 為玩家順位，-1 表示重賽歸零）
type ScorePayload struct {
	Who   int `json:"who"`
	Score int `json:"score"`
	Add   int `json:"add"`
}

// BagPayload 背包數量更新，只發給持有者本人
type BagPayload struct {
	Bag int `json:"bag"`
}

// MatchOverPayload 比賽結束（winner 為 -1 表示平手）
type MatchOverPayload struct {
	Winner int `json:"winner"`
	P0     int `json:"p0"`
	P1     int `json:"p1"`
}
