package internal

import (
	"context"
	"strconv"
	"time"
)

// matchLoop 一個房間的倒數計時迴圈
//
// 每個 tick 扣一秒並向全房廣播剩餘秒數（原始字串）。
// 自然倒數到 0 才進入結算：被取消（重賽、解散）的世代
// 直接退出，不送 MatchOver。
func (reg *Registry) matchLoop(ctx context.Context, room *Room) {
	ticker := time.NewTicker(reg.cfg.Match.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		left, ok := room.Countdown(ctx)
		if !ok {
			return
		}
		room.Broadcast(MsgTimerSync, strconv.Itoa(left))
		if left <= 0 {
			break
		}
	}

	// 時間到：結算與停掉產生器帶世代檢查，倒數到 0 之後
	// 才成立的重賽會換掉世代，這裡就不再廣播
	winner, p0, p1, ok := room.FinishMatch(ctx)
	if !ok {
		return
	}
	room.BroadcastPayload(MsgMatchOver, MatchOverPayload{Winner: winner, P0: p0, P1: p1})

	reg.logger.Info("比賽結束",
		"room", room.Name,
		"winner", winner,
		"p0", p0,
		"p1", p1)
}
