package internal_test

import (
	"sync"
	"testing"

	"github.com/koopa0/boomdash-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoomAddPlayerCapacity 容量上限永遠不被突破
func TestRoomAddPlayerCapacity(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	a, _ := newTestSession("A")
	b, _ := newTestSession("B")
	c, _ := newTestSession("C")

	count, err := room.AddPlayer(a)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = room.AddPlayer(b)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = room.AddPlayer(c)
	require.Error(t, err)
	assert.Equal(t, 2, room.PlayerCount())
}

// TestRoomPlayerIndexJoinOrder 順位即加入順序
func TestRoomPlayerIndexJoinOrder(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	a, _ := newTestSession("A")
	b, _ := newTestSession("B")
	stranger, _ := newTestSession("X")

	_, _ = room.AddPlayer(a)
	_, _ = room.AddPlayer(b)

	assert.Equal(t, 0, room.PlayerIndex(a))
	assert.Equal(t, 1, room.PlayerIndex(b))
	assert.Equal(t, -1, room.PlayerIndex(stranger))
}

// TestRoomRemovePlayer 移除後剩餘人數正確，再移除不存在者不出錯
func TestRoomRemovePlayer(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	a, _ := newTestSession("A")
	b, _ := newTestSession("B")

	_, _ = room.AddPlayer(a)
	_, _ = room.AddPlayer(b)

	assert.Equal(t, 1, room.RemovePlayer(a))
	assert.Equal(t, 1, room.RemovePlayer(a))
	assert.Equal(t, 0, room.RemovePlayer(b))
}

// TestRoomMatchRunning 比賽進行中的定義：計時器存活且秒數大於零
func TestRoomMatchRunning(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	assert.False(t, room.IsMatchRunning())

	room.ResetForMatch(10)
	assert.True(t, room.IsMatchRunning())
	assert.Equal(t, 10, room.SecondsLeft())

	room.Teardown()
	assert.False(t, room.IsMatchRunning())
	assert.Equal(t, 0, room.SecondsLeft())
}

// TestRoomTakeItemFirstWins 同一個道具被並發拾取時只有一人成功
func TestRoomTakeItemFirstWins(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	a, _ := newTestSession("A")
	b, _ := newTestSession("B")
	_, _ = room.AddPlayer(a)
	_, _ = room.AddPlayer(b)

	dropCtx, _ := room.ResetForMatch(10)
	require.True(t, room.RecordItem(dropCtx, "inst-1", 10001))

	results := make([]internal.PickupResult, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], _, _ = room.TakeItem(a, "inst-1", 10000, 5)
	}()
	go func() {
		defer wg.Done()
		results[1], _, _ = room.TakeItem(b, "inst-1", 10000, 5)
	}()
	wg.Wait()

	wins := 0
	for _, r := range results {
		if r == internal.PickupEffect {
			wins++
		} else {
			assert.Equal(t, internal.PickupMissed, r)
		}
	}
	assert.Equal(t, 1, wins, "恰好一人拾取成功")
	assert.Equal(t, 0, room.ItemCount())
}

// TestRoomTakeItemNotRunning 比賽未進行時拾取一律靜默忽略
func TestRoomTakeItemNotRunning(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	a, _ := newTestSession("A")
	_, _ = room.AddPlayer(a)

	result, _, _ := room.TakeItem(a, "inst-1", 10000, 5)
	assert.Equal(t, internal.PickupMissed, result)
}

// TestRoomTakeItemCurrencyAndBag 貨幣道具進背包；背包滿時道具留在場上
func TestRoomTakeItemCurrencyAndBag(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	a, _ := newTestSession("A")
	_, _ = room.AddPlayer(a)

	dropCtx, _ := room.ResetForMatch(10)
	require.True(t, room.RecordItem(dropCtx, "coin-1", 10000))
	require.True(t, room.RecordItem(dropCtx, "coin-2", 10000))

	result, itemID, bag := room.TakeItem(a, "coin-1", 10000, 5)
	assert.Equal(t, internal.PickupCurrency, result)
	assert.Equal(t, 10000, itemID)
	assert.Equal(t, 1, bag)
	assert.Equal(t, 1, room.ItemCount())

	// 裝滿背包之後，再拾取貨幣只會回報現況，道具不消失
	a.Bag = 5
	result, _, bag = room.TakeItem(a, "coin-2", 10000, 5)
	assert.Equal(t, internal.PickupBagFull, result)
	assert.Equal(t, 5, bag)
	assert.Equal(t, 1, room.ItemCount())
}

// TestRoomDepositBag 背包全數轉分數；空背包不動作
func TestRoomDepositBag(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	a, _ := newTestSession("A")
	b, _ := newTestSession("B")
	_, _ = room.AddPlayer(a)
	_, _ = room.AddPlayer(b)
	room.ResetForMatch(10)

	b.Bag = 3
	who, add, total, ok := room.DepositBag(b)
	require.True(t, ok)
	assert.Equal(t, 1, who)
	assert.Equal(t, 3, add)
	assert.Equal(t, 3, total)
	assert.Equal(t, 0, b.Bag)
	assert.Equal(t, 3, b.Score)

	_, _, _, ok = room.DepositBag(b)
	assert.False(t, ok, "空背包不產生任何訊息")
}

// TestRoomRequestRematch 全員同意才重置
func TestRoomRequestRematch(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	a, _ := newTestSession("A")
	b, _ := newTestSession("B")
	_, _ = room.AddPlayer(a)
	_, _ = room.AddPlayer(b)
	room.ResetForMatch(10)

	a.Score, a.Bag = 7, 2
	b.Score = 3

	assert.False(t, room.RequestRematch(a), "只有一人要求時不重置")
	assert.Equal(t, 7, a.Score)

	assert.True(t, room.RequestRematch(b))
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, 0, a.Bag)
	assert.Equal(t, 0, b.Score)
	assert.False(t, a.WantsRematch)
	assert.False(t, room.IsMatchRunning(), "舊比賽已拆除，等呼叫端重新開賽")
}

// TestRoomFinalScores 結算與平手哨兵
func TestRoomFinalScores(t *testing.T) {
	tests := []struct {
		name       string
		scoreA     int
		scoreB     int
		wantWinner int
	}{
		{name: "p0 wins", scoreA: 10, scoreB: 3, wantWinner: 0},
		{name: "p1 wins", scoreA: 2, scoreB: 9, wantWinner: 1},
		{name: "draw", scoreA: 5, scoreB: 5, wantWinner: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := internal.NewRoom("Arena1", false, "", 2)
			a, _ := newTestSession("A")
			b, _ := newTestSession("B")
			_, _ = room.AddPlayer(a)
			_, _ = room.AddPlayer(b)

			a.Score, b.Score = tt.scoreA, tt.scoreB
			winner, p0, p1 := room.FinalScores()
			assert.Equal(t, tt.wantWinner, winner)
			assert.Equal(t, tt.scoreA, p0)
			assert.Equal(t, tt.scoreB, p1)
		})
	}
}

// TestRoomFinishMatchStaleGeneration 被重賽換掉的計時器不得結算，
// 也不能停掉新世代的產生器
func TestRoomFinishMatchStaleGeneration(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)
	a, _ := newTestSession("A")
	b, _ := newTestSession("B")
	_, _ = room.AddPlayer(a)
	_, _ = room.AddPlayer(b)

	_, oldMatch := room.ResetForMatch(10)
	newDrop, newMatch := room.ResetForMatch(10)

	_, _, _, ok := room.FinishMatch(oldMatch)
	assert.False(t, ok, "舊計時器拿不到結算權")
	assert.True(t, room.RecordItem(newDrop, "n-1", 10000), "新世代產生器不受影響")

	a.Score = 4
	winner, p0, p1, ok := room.FinishMatch(newMatch)
	require.True(t, ok)
	assert.Equal(t, 0, winner)
	assert.Equal(t, 4, p0)
	assert.Equal(t, 0, p1)

	// 結算同時停掉了現任產生器
	assert.False(t, room.RecordItem(newDrop, "n-2", 10000))
}

// TestRoomRecordItemStaleGeneration 舊世代的產生器不得再登記道具
func TestRoomRecordItemStaleGeneration(t *testing.T) {
	room := internal.NewRoom("Arena1", false, "", 2)

	oldDrop, _ := room.ResetForMatch(10)
	require.True(t, room.RecordItem(oldDrop, "old-1", 10000))

	newDrop, _ := room.ResetForMatch(10)
	assert.Equal(t, 0, room.ItemCount(), "重開比賽會清空場上道具")

	assert.False(t, room.RecordItem(oldDrop, "old-2", 10000), "舊世代被拒絕")
	assert.True(t, room.RecordItem(newDrop, "new-1", 10000))
	assert.Equal(t, 1, room.ItemCount())
}
