package internal

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry 房間註冊表：跨房間協調的唯一入口
//
// 兩層鎖的分工：
//   - Registry 的 RWMutex 保護 rooms 與 sessionRoom 兩張映射
//   - 每個 Room 自己的鎖保護房內狀態
//
// 需要同時持有兩把鎖時，一律先取 Registry 鎖再取 Room 鎖。
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*Room    // 房名 -> Room
	sessionRoom map[string]*Room    // Session ID -> 所在房間

	catalog *Catalog
	cfg     *Config
	logger  *slog.Logger

	nickCounter atomic.Int64
}

// NewRegistry 建立房間註冊表
func NewRegistry(cfg *Config, catalog *Catalog, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		sessionRoom: make(map[string]*Room),
		catalog:     catalog,
		cfg:         cfg,
		logger:      logger,
	}
}

// NextNickname 產生新連線的顯示名稱
func (reg *Registry) NextNickname() string {
	return fmt.Sprintf("Player%d", reg.nickCounter.Add(1))
}

// CreateRoom 建立房間，建立者成為順位 0 的玩家
func (reg *Registry) CreateRoom(s *Session, p CreateRoomPayload) error {
	if p.Name == "" {
		return fmt.Errorf("房間名稱不能為空")
	}
	if p.MaxPlayers <= 0 {
		return fmt.Errorf("人數上限無效")
	}

	reg.mu.Lock()
	if _, in := reg.sessionRoom[s.ID]; in {
		reg.mu.Unlock()
		return fmt.Errorf("已在其他房間中")
	}
	if _, exists := reg.rooms[p.Name]; exists {
		reg.mu.Unlock()
		return fmt.Errorf("已存在相同名稱的房間")
	}
	room := NewRoom(p.Name, p.IsPrivate, p.Password, p.MaxPlayers)
	if _, err := room.AddPlayer(s); err != nil {
		reg.mu.Unlock()
		return err
	}
	reg.rooms[p.Name] = room
	reg.sessionRoom[s.ID] = room
	reg.mu.Unlock()

	reg.logger.Info("房間已建立",
		"room", p.Name,
		"private", p.IsPrivate,
		"max_players", p.MaxPlayers,
		"creator", s.Nickname)

	reg.broadcastRoomList()
	return nil
}

// JoinRoom 加入房間；補上最後一個空位的請求負責啟動比賽
//
// 查找與加入在同一把 Registry 鎖下完成：並發的最後一人斷線
// 會拆掉房間，鎖外使用查到的指標會讓加入者落進已除名的殭屍房。
func (reg *Registry) JoinRoom(s *Session, p JoinRoomPayload) error {
	reg.mu.Lock()
	if _, in := reg.sessionRoom[s.ID]; in {
		reg.mu.Unlock()
		return fmt.Errorf("已在其他房間中")
	}
	room, ok := reg.rooms[p.RoomName]
	if !ok {
		reg.mu.Unlock()
		return fmt.Errorf("房間不存在")
	}
	if room.IsPrivate && room.Password != p.Password {
		reg.mu.Unlock()
		return fmt.Errorf("密碼錯誤")
	}

	count, err := room.AddPlayer(s)
	if err != nil {
		reg.mu.Unlock()
		return err
	}
	reg.sessionRoom[s.ID] = room
	reg.mu.Unlock()

	reg.logger.Info("玩家加入房間",
		"room", room.Name,
		"player", s.Nickname,
		"count", count,
		"max", room.MaxPlayers)

	if count == room.MaxPlayers {
		reg.startMatch(room)
	}
	return nil
}

// startMatch 進入 Starting 狀態：廣播開賽並啟動背景任務
//
// 初次滿房與重賽走同一條路。ResetForMatch 會先取消舊世代，
// 不可能有兩代產生器同時運作。
func (reg *Registry) startMatch(room *Room) {
	dropCtx, matchCtx := room.ResetForMatch(reg.cfg.Match.Seconds)

	swap := rand.IntN(2) == 1
	room.BroadcastPayload(MsgStartGame, StartGamePayload{RoomName: room.Name, Swap: swap})

	reg.startSpawners(room, dropCtx)
	go reg.matchLoop(matchCtx, room)

	reg.logger.Info("比賽開始",
		"room", room.Name,
		"swap", swap,
		"seconds", reg.cfg.Match.Seconds)
}

// RoomList 將目前所有房間的摘要送給請求者
func (reg *Registry) RoomList(s *Session) error {
	return s.SendPayload(MsgRoomList, reg.summaries())
}

func (reg *Registry) summaries() []RoomSummary {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	list := make([]RoomSummary, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		list = append(list, room.Summary())
	}
	return list
}

// broadcastRoomList 向所有已在房間內的玩家推送最新列表
//
// 還在大廳、尚未加入任何房間的連線以 RoomList 請求自行拉取。
func (reg *Registry) broadcastRoomList() {
	list := reg.summaries()
	msg, err := NewMessage(MsgRoomList, list)
	if err != nil {
		return
	}

	reg.mu.RLock()
	var targets []*Session
	for _, room := range reg.rooms {
		targets = append(targets, room.Players()...)
	}
	reg.mu.RUnlock()

	for _, p := range targets {
		_ = p.Send(MsgRoomList, msg.Data)
	}
}

// MyOrder 回覆請求者在指定房間內的順位
func (reg *Registry) MyOrder(s *Session, roomName string) error {
	reg.mu.RLock()
	room, ok := reg.rooms[strings.TrimSpace(roomName)]
	reg.mu.RUnlock()

	if !ok {
		return fmt.Errorf("該房間不存在")
	}
	index := room.PlayerIndex(s)
	if index == -1 {
		return fmt.Errorf("在房間中找不到這位玩家")
	}
	return s.Send(MsgMyOrder, strconv.Itoa(index))
}

// RelayMove 將位置原樣轉發給房內其他玩家
//
// 伺服器不解析也不驗證座標（沿用客戶端權威的原始設計），
// 比賽未進行時靜默忽略。
func (reg *Registry) RelayMove(s *Session, data string) {
	room := reg.roomOf(s)
	if room == nil || !room.IsMatchRunning() {
		return
	}
	for _, p := range room.Players() {
		if p != s {
			_ = p.Send(MsgMove, data)
		}
	}
}

// ItemPickup 處理拾取請求，Data 為道具實例 ID 的原始字串
func (reg *Registry) ItemPickup(s *Session, data string) {
	instanceID := strings.TrimSpace(data)
	if instanceID == "" {
		return
	}
	room := reg.roomOf(s)
	if room == nil {
		return
	}

	result, itemID, bag := room.TakeItem(s, instanceID, reg.cfg.Match.CurrencyItemID, reg.cfg.Match.BagCapacity)
	switch result {
	case PickupMissed:
		// 已被另一位玩家搶先，靜默忽略
	case PickupBagFull:
		_ = s.SendPayload(MsgBagUpdate, BagPayload{Bag: bag})
	case PickupCurrency:
		room.Broadcast(MsgItemRemove, instanceID)
		_ = s.SendPayload(MsgBagUpdate, BagPayload{Bag: bag})
	case PickupEffect:
		room.Broadcast(MsgItemRemove, instanceID)
		reg.applyItemEffect(room, s, itemID)
	}
}

// applyItemEffect 套用道具效果
//
// 查無定義或效果種類未定義時只記錄，不送出任何訊息。
func (reg *Registry) applyItemEffect(room *Room, target *Session, itemID int) {
	def, ok := reg.catalog.Item(itemID)
	if !ok {
		reg.logger.Warn("找不到道具定義，略過效果", "item_id", itemID)
		return
	}

	switch def.Effect {
	case EffectScore:
		add := int(def.Value1)
		who, total := room.AddScore(target, add)
		room.BroadcastPayload(MsgScoreUpdate, ScorePayload{Who: who, Score: total, Add: add})
		reg.logger.Info("加分", "room", room.Name, "player", target.Nickname, "add", add, "score", total)

	case EffectMoveSpeedUp:
		// 增益只通知拾取者本人，不做廣播
		_ = target.SendPayload(MsgApplyBuff, BuffPayload{
			Type:     "PlayerMoveSpeedUp",
			Value:    def.Value1,
			Duration: def.Duration,
		})
		reg.logger.Info("移速增益", "room", room.Name, "player", target.Nickname, "value", def.Value1, "duration", def.Duration)

	default:
		reg.logger.Warn("未定義的效果種類", "item_id", itemID, "effect", int(def.Effect))
	}
}

// DepositBag 將請求者的背包全數入金
func (reg *Registry) DepositBag(s *Session) {
	room := reg.roomOf(s)
	if room == nil {
		return
	}

	who, add, total, ok := room.DepositBag(s)
	if !ok {
		return
	}
	_ = s.SendPayload(MsgBagUpdate, BagPayload{Bag: 0})
	room.BroadcastPayload(MsgScoreUpdate, ScorePayload{Who: who, Score: total, Add: add})
	reg.logger.Info("入金", "room", room.Name, "player", s.Nickname, "add", add, "score", total)
}

// RequestRematch 登記重賽意願，全員同意後重新開賽
func (reg *Registry) RequestRematch(s *Session) {
	room := reg.roomOf(s)
	if room == nil {
		return
	}

	reg.logger.Info("要求重賽", "room", room.Name, "player", s.Nickname)
	if !room.RequestRematch(s) {
		return
	}

	// 先把歸零狀態推給每位玩家，再走一次開賽流程
	for _, p := range room.Players() {
		_ = p.SendPayload(MsgBagUpdate, BagPayload{Bag: 0})
		_ = p.SendPayload(MsgScoreUpdate, ScorePayload{Who: -1, Score: 0, Add: 0})
	}
	reg.startMatch(room)
	reg.logger.Info("重賽開始", "room", room.Name)
}

// ExitToLobby 解散請求者所在的房間，所有玩家返回大廳
func (reg *Registry) ExitToLobby(s *Session) {
	room := reg.roomOf(s)
	if room == nil {
		return
	}

	reg.logger.Info("解散房間返回大廳", "room", room.Name, "player", s.Nickname)

	room.Broadcast(MsgReturnToLobby, "")
	room.Teardown()

	reg.mu.Lock()
	delete(reg.rooms, room.Name)
	for _, p := range room.Players() {
		delete(reg.sessionRoom, p.ID)
	}
	reg.mu.Unlock()

	reg.broadcastRoomList()
}

// RemoveSession 連線終止時的清理：退出所在房間，空房連同背景任務一起拆除
func (reg *Registry) RemoveSession(s *Session) {
	reg.mu.Lock()
	room, ok := reg.sessionRoom[s.ID]
	if ok {
		delete(reg.sessionRoom, s.ID)
	}
	if room == nil {
		reg.mu.Unlock()
		return
	}

	remaining := room.RemovePlayer(s)
	if remaining == 0 {
		room.Teardown()
		delete(reg.rooms, room.Name)
	}
	reg.mu.Unlock()

	reg.logger.Info("玩家離線",
		"player", s.Nickname,
		"room", room.Name,
		"remaining", remaining)
}

// GetRoom 查詢房間
func (reg *Registry) GetRoom(name string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[name]
	return room, ok
}

// RoomCount 目前房間數
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// roomOf 查詢 Session 所在的房間
func (reg *Registry) roomOf(s *Session) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.sessionRoom[s.ID]
}

// Stop 關閉所有房間（伺服器關機時呼叫）
func (reg *Registry) Stop() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, room := range reg.rooms {
		room.Teardown()
	}
	clear(reg.rooms)
	clear(reg.sessionRoom)

	reg.logger.Info("房間註冊表已停止")
}
