package internal_test

import (
	"testing"
	"time"

	"github.com/koopa0/boomdash-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSpawnerProducesItems 掉落表驅動的道具出現在場內並廣播給雙方
func TestSpawnerProducesItems(t *testing.T) {
	reg := newSpawningRegistry([]internal.DropEntry{
		{ItemID: 10000, Name: "Coin", QuantityMin: 1, QuantityMax: 1, DropTime: 1},
	})
	_, _, atr, btr := fillRoom(t, reg, "Arena1")

	require.Eventually(t, func() bool {
		return atr.count(internal.MsgItemSpawn) >= 2
	}, 2*time.Second, 5*time.Millisecond, "等待至少兩次掉落")

	field := testConfig().Match.Field
	seen := map[string]struct{}{}
	for _, m := range atr.byType(internal.MsgItemSpawn) {
		p := decodePayload[internal.ItemSpawnPayload](t, m)
		assert.Equal(t, 10000, p.ItemID)
		assert.NotEmpty(t, p.InstanceID)
		assert.GreaterOrEqual(t, p.X, field.MinX)
		assert.LessOrEqual(t, p.X, field.MaxX)
		assert.GreaterOrEqual(t, p.Y, field.MinY)
		assert.LessOrEqual(t, p.Y, field.MaxY)

		_, dup := seen[p.InstanceID]
		assert.False(t, dup, "實例 ID 不得重複")
		seen[p.InstanceID] = struct{}{}
	}

	assert.NotZero(t, btr.count(internal.MsgItemSpawn), "掉落是廣播")

	room, ok := reg.GetRoom("Arena1")
	require.True(t, ok)
	assert.NotZero(t, room.ItemCount())
}

// TestSpawnerPickupRoundTrip 由產生器掉出的道具可以被拾取
func TestSpawnerPickupRoundTrip(t *testing.T) {
	reg := newSpawningRegistry([]internal.DropEntry{
		{ItemID: 10000, Name: "Coin", QuantityMin: 1, QuantityMax: 1, DropTime: 1},
	})
	a, _, atr, _ := fillRoom(t, reg, "Arena1")

	require.Eventually(t, func() bool {
		return atr.count(internal.MsgItemSpawn) > 0
	}, 2*time.Second, 5*time.Millisecond)

	p := decodePayload[internal.ItemSpawnPayload](t, atr.byType(internal.MsgItemSpawn)[0])
	reg.ItemPickup(a, p.InstanceID)

	bags := atr.byType(internal.MsgBagUpdate)
	require.NotEmpty(t, bags)
	assert.Equal(t, 1, decodePayload[internal.BagPayload](t, bags[0]).Bag)
}

// TestSpawnerStopsOnTeardown 房間解散後不得再有新的掉落
func TestSpawnerStopsOnTeardown(t *testing.T) {
	reg := newSpawningRegistry([]internal.DropEntry{
		{ItemID: 10000, Name: "Coin", QuantityMin: 1, QuantityMax: 1, DropTime: 1},
	})
	a, _, atr, _ := fillRoom(t, reg, "Arena1")

	require.Eventually(t, func() bool {
		return atr.count(internal.MsgItemSpawn) > 0
	}, 2*time.Second, 5*time.Millisecond)

	reg.ExitToLobby(a)

	time.Sleep(30 * time.Millisecond)
	spawned := atr.count(internal.MsgItemSpawn)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, spawned, atr.count(internal.MsgItemSpawn))
}

// TestSpawnerZeroQuantityEntry 抽中數量為零的項目當輪不掉落
func TestSpawnerZeroQuantityEntry(t *testing.T) {
	reg := newSpawningRegistry([]internal.DropEntry{
		{ItemID: 10001, Name: "ScoreGem", QuantityMin: 0, QuantityMax: 0, DropTime: 1},
	})
	_, _, atr, _ := fillRoom(t, reg, "Arena1")

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, atr.count(internal.MsgItemSpawn))
}

// TestEmptyDropTable 掉落表為空時比賽照常進行，只是沒有道具
func TestEmptyDropTable(t *testing.T) {
	reg := newTestRegistry()
	_, _, atr, _ := fillRoom(t, reg, "Arena1")

	room, ok := reg.GetRoom("Arena1")
	require.True(t, ok)
	assert.True(t, room.IsMatchRunning())

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, atr.count(internal.MsgItemSpawn))
}
