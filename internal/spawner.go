package internal

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// startSpawners 為掉落表的每一條項目啟動一個獨立的產生迴圈
//
// 各項目互不相依、沒有順序保證。掉落表為空時只記錄警告，
// 比賽照常進行，只是永遠不會有道具出現。
func (reg *Registry) startSpawners(room *Room, ctx context.Context) {
	entries := reg.catalog.DropEntries()
	if len(entries) == 0 {
		reg.logger.Warn("掉落表為空，不啟動道具產生", "room", room.Name)
		return
	}
	for _, entry := range entries {
		go reg.spawnLoop(ctx, room, entry)
	}
}

// spawnLoop 單一掉落表項目的產生迴圈
//
// 每個週期抽一次 [min, max] 的均勻數量，為每一個道具產生
// 新的實例 ID 與場內隨機位置。登記失敗（世代已被取消）時
// 立即結束，不得再廣播。
func (reg *Registry) spawnLoop(ctx context.Context, room *Room, entry DropEntry) {
	period := time.Duration(entry.DropTime) * reg.cfg.Match.TickInterval
	if period <= 0 {
		period = reg.cfg.Match.TickInterval
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		span := entry.QuantityMax - entry.QuantityMin + 1
		if span < 1 {
			continue
		}
		qty := entry.QuantityMin + rand.IntN(span)
		if qty <= 0 {
			continue
		}

		field := reg.cfg.Match.Field
		for i := 0; i < qty; i++ {
			instanceID := uuid.NewString()
			x := field.MinX + rand.Float64()*(field.MaxX-field.MinX)
			y := field.MinY + rand.Float64()*(field.MaxY-field.MinY)

			if !room.RecordItem(ctx, instanceID, entry.ItemID) {
				return
			}
			room.BroadcastPayload(MsgItemSpawn, ItemSpawnPayload{
				InstanceID: instanceID,
				ItemID:     entry.ItemID,
				X:          x,
				Y:          y,
			})
			reg.logger.Debug("產生道具",
				"room", room.Name,
				"item_id", entry.ItemID,
				"instance", instanceID)
		}
	}
}
