package internal

import (
	"context"
	"fmt"
	"sync"
)

// 系統設計問題：
//   一場比賽的所有可變狀態（玩家、場上道具、倒數秒數）
//   會被多個來源同時觸碰：兩條連線的讀取迴圈、
//   每條掉落表項目的產生迴圈、一條倒數計時迴圈。
//
// 核心挑戰：
//   1. 競態解決：兩位玩家同時拾取同一個道具，只能有一人成功
//   2. 世代管理：重賽會換掉計時器與產生器，舊世代不能再寫入狀態
//   3. 鎖的層級：Registry 鎖在外、Room 鎖在內，順序固定避免死鎖
//
// 設計方案：
//   ✅ 單一 Room 互斥鎖 - 玩家列表、道具集合、分數背包全部由它保護
//   ✅ context 取消 - 計時器與產生器各持一個 context，重賽時換新
//   ✅ 持鎖驗世代 - 背景任務在房間鎖內重新檢查自己的 context，
//      取消與清空在同一把鎖下完成，舊世代醒來後無從寫入

// Room 一場比賽的聚合狀態
//
// 玩家以加入順序存放，索引即客戶端的出生順位。
// activeItems 與 itemMap 成對維護：前者是場上道具的集合，
// 後者記錄每個實例對應哪個道具定義。
type Room struct {
	Name       string
	IsPrivate  bool
	Password   string // 公開房為空字串，永遠不對外序列化
	MaxPlayers int

	mu          sync.Mutex
	players     []*Session
	activeItems map[string]struct{}
	itemMap     map[string]int
	secondsLeft int

	// 背景任務的世代控制。換新世代前一定先取消舊的。
	matchCtx    context.Context
	matchCancel context.CancelFunc
	dropCtx     context.Context
	dropCancel  context.CancelFunc
}

// NewRoom 建立房間
func NewRoom(name string, isPrivate bool, password string, maxPlayers int) *Room {
	return &Room{
		Name:        name,
		IsPrivate:   isPrivate,
		Password:    password,
		MaxPlayers:  maxPlayers,
		activeItems: make(map[string]struct{}),
		itemMap:     make(map[string]int),
	}
}

// AddPlayer 加入玩家，回傳加入後的人數
//
// 容量檢查與追加在同一把鎖下完成：兩個同時加入的請求
// 不可能都認為自己填滿了最後一個空位。
func (r *Room) AddPlayer(s *Session) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= r.MaxPlayers {
		return len(r.players), fmt.Errorf("房間已滿")
	}
	r.players = append(r.players, s)
	return len(r.players), nil
}

// RemovePlayer 移除玩家，回傳剩餘人數
func (r *Room) RemovePlayer(s *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.players {
		if p == s {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	return len(r.players)
}

// PlayerIndex 玩家的順位（加入順序），不在房間內回傳 -1
func (r *Room) PlayerIndex(s *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(s)
}

func (r *Room) indexLocked(s *Session) int {
	for i, p := range r.players {
		if p == s {
			return i
		}
	}
	return -1
}

// Players 玩家列表快照，供鎖外廣播使用
func (r *Room) Players() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Session(nil), r.players...)
}

// PlayerCount 目前人數
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// IsMatchRunning 比賽是否進行中：計時器存活且還有剩餘秒數
//
// 所有會改變玩法狀態的操作（移動轉發、拾取、入金）都以此為前提。
func (r *Room) IsMatchRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchRunningLocked()
}

func (r *Room) matchRunningLocked() bool {
	return r.matchCtx != nil && r.matchCtx.Err() == nil && r.secondsLeft > 0
}

// SecondsLeft 剩餘秒數
func (r *Room) SecondsLeft() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.secondsLeft
}

// ItemCount 場上道具數
func (r *Room) ItemCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeItems)
}

// ResetForMatch 開始新的一場比賽（初次開賽與重賽共用）
//
// 取消舊世代、清空場上道具、設定秒數、建立新的 context，
// 全部在一把鎖下完成。回傳產生器與計時器各自的 context。
func (r *Room) ResetForMatch(seconds int) (dropCtx, matchCtx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.teardownLocked()
	r.secondsLeft = seconds
	r.dropCtx, r.dropCancel = context.WithCancel(context.Background())
	r.matchCtx, r.matchCancel = context.WithCancel(context.Background())
	return r.dropCtx, r.matchCtx
}

// Teardown 停止所有背景任務並清空道具狀態
func (r *Room) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked()
}

func (r *Room) teardownLocked() {
	if r.dropCancel != nil {
		r.dropCancel()
		r.dropCtx, r.dropCancel = nil, nil
	}
	if r.matchCancel != nil {
		r.matchCancel()
		r.matchCtx, r.matchCancel = nil, nil
	}
	r.secondsLeft = 0
	clear(r.activeItems)
	clear(r.itemMap)
}

// FinishMatch 自然倒數結束時的結算：停止產生器並取得最終分數
//
// 與 RecordItem 相同的世代檢查：只有仍是現任世代的計時器
// 才能結算。重賽已經換掉世代時回傳 ok=false，呼叫端不得
// 廣播，也不會動到新世代的產生器。
func (r *Room) FinishMatch(ctx context.Context) (winner, p0, p1 int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil || r.matchCtx != ctx {
		return 0, 0, 0, false
	}
	if r.dropCancel != nil {
		r.dropCancel()
		r.dropCtx, r.dropCancel = nil, nil
	}
	winner, p0, p1 = r.finalScoresLocked()
	return winner, p0, p1, true
}

// RecordItem 登記一個新的道具實例
//
// 產生迴圈在鎖內重新檢查自己的 context：若已被取消或已被
// 新世代取代，回傳 false，呼叫端應立即結束，不得廣播。
func (r *Room) RecordItem(ctx context.Context, instanceID string, itemID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil || r.dropCtx != ctx {
		return false
	}
	r.activeItems[instanceID] = struct{}{}
	r.itemMap[instanceID] = itemID
	return true
}

// Countdown 倒數一秒，回傳剩餘秒數
//
// 與 RecordItem 相同的世代檢查：被取消或被取代的計時器
// 不得再動到秒數。
func (r *Room) Countdown(ctx context.Context) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil || r.matchCtx != ctx {
		return 0, false
	}
	r.secondsLeft--
	return r.secondsLeft, true
}

// PickupResult 道具拾取的判定結果
type PickupResult int

const (
	PickupMissed   PickupResult = iota // 不存在或已被撿走，靜默忽略
	PickupBagFull                      // 貨幣道具但背包已滿，道具留在場上
	PickupCurrency                     // 收進背包
	PickupEffect                       // 需要套用道具效果
)

// TakeItem 嘗試拾取道具
//
// 先到先得：道具是否還在場上以 itemMap 的成員資格為準，
// 判定與移除在同一把鎖下完成，同一實例不可能被拾取兩次。
// bag 回傳拾取後（或維持不變）的背包數量。
func (r *Room) TakeItem(s *Session, instanceID string, currencyItemID, bagCapacity int) (result PickupResult, itemID int, bag int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.matchRunningLocked() {
		return PickupMissed, 0, 0
	}
	itemID, ok := r.itemMap[instanceID]
	if !ok {
		return PickupMissed, 0, 0
	}

	if itemID == currencyItemID && s.Bag >= bagCapacity {
		return PickupBagFull, itemID, s.Bag
	}

	delete(r.activeItems, instanceID)
	delete(r.itemMap, instanceID)

	if itemID == currencyItemID {
		s.Bag++
		return PickupCurrency, itemID, s.Bag
	}
	return PickupEffect, itemID, 0
}

// DepositBag 將背包全數轉為分數
//
// 比賽未進行或背包為空時 ok 為 false，呼叫端不送出任何訊息。
func (r *Room) DepositBag(s *Session) (who, add, total int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.matchRunningLocked() || s.Bag <= 0 {
		return 0, 0, 0, false
	}
	add = s.Bag
	s.Bag = 0
	s.Score += add
	return r.indexLocked(s), add, s.Score, true
}

// AddScore 加分（道具效果），回傳玩家順位與新總分
func (r *Room) AddScore(s *Session, add int) (who, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.Score += add
	return r.indexLocked(s), s.Score
}

// RequestRematch 登記重賽意願
//
// 回傳 true 表示全員到齊且都已要求重賽：此時意願旗標、
// 分數、背包都已歸零，舊的計時器與產生器已取消，
// 呼叫端接著廣播歸零狀態並重新開賽。
func (r *Room) RequestRematch(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.WantsRematch = true

	if len(r.players) != r.MaxPlayers {
		return false
	}
	for _, p := range r.players {
		if !p.WantsRematch {
			return false
		}
	}

	for _, p := range r.players {
		p.WantsRematch = false
		p.Score = 0
		p.Bag = 0
	}
	r.teardownLocked()
	return true
}

// FinalScores 結算：比較前兩位玩家的分數，平手時 winner 為 -1
func (r *Room) FinalScores() (winner, p0, p1 int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalScoresLocked()
}

func (r *Room) finalScoresLocked() (winner, p0, p1 int) {
	if len(r.players) > 0 {
		p0 = r.players[0].Score
	}
	if len(r.players) > 1 {
		p1 = r.players[1].Score
	}

	winner = -1
	if len(r.players) >= 2 {
		if p0 > p1 {
			winner = 0
		} else if p1 > p0 {
			winner = 1
		}
	}
	return winner, p0, p1
}

// Broadcast 向房間內所有玩家送出同一則訊息
func (r *Room) Broadcast(t MessageType, data string) {
	for _, p := range r.Players() {
		_ = p.Send(t, data)
	}
}

// BroadcastPayload 編碼 payload 後向所有玩家廣播
func (r *Room) BroadcastPayload(t MessageType, payload any) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return
	}
	r.Broadcast(t, msg.Data)
}

// Summary 房間摘要（不含密碼）
func (r *Room) Summary() RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomSummary{
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		Current:   len(r.players),
		Max:       r.MaxPlayers,
	}
}
