package internal_test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"testing"

	"github.com/koopa0/boomdash-server/internal"
	"github.com/stretchr/testify/require"
)

// 創建測試用的 logger
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // 測試時只顯示錯誤
	}))
}

// fakeTransport 收集送出的訊息供測試檢驗
type fakeTransport struct {
	mu     sync.Mutex
	closed bool
	msgs   []internal.Message
}

func (f *fakeTransport) WriteMessage(line []byte) error {
	var m internal.Message
	if err := json.Unmarshal(line, &m); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("transport closed")
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// messages 所有已送出訊息的快照
func (f *fakeTransport) messages() []internal.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]internal.Message(nil), f.msgs...)
}

// byType 指定種類的訊息
func (f *fakeTransport) byType(t internal.MessageType) []internal.Message {
	var out []internal.Message
	for _, m := range f.messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// count 指定種類的訊息數
func (f *fakeTransport) count(t internal.MessageType) int {
	return len(f.byType(t))
}

// newTestSession 建立掛在 fakeTransport 上的 Session
func newTestSession(nickname string) (*internal.Session, *fakeTransport) {
	tr := &fakeTransport{}
	return internal.NewSession(nickname, tr, testLogger()), tr
}

// testConfig 縮短時間單位的配置，讓倒數與掉落以毫秒級進行。
// 秒數故意拉長，玩法測試期間比賽不會自己結束；
// 倒數相關測試自行覆寫 Seconds。
func testConfig() *internal.Config {
	cfg := internal.DefaultConfig()
	cfg.Match.Seconds = 600
	cfg.Match.TickInterval = 5 * time.Millisecond
	return cfg
}

// testDefs 測試共用的道具定義
func testDefs() []internal.ItemDef {
	return []internal.ItemDef{
		{ID: 10000, Name: "Coin", Category: "Currency", Effect: internal.EffectNone},
		{ID: 10001, Name: "ScoreGem", Category: "Consumable", Effect: internal.EffectScore, Value1: 50},
		{ID: 10002, Name: "SpeedBoots", Category: "Buff", Effect: internal.EffectMoveSpeedUp, Value1: 1.5, Duration: 5},
	}
}

// newTestRegistry 掉落表為空的註冊表：玩法測試不受背景產生干擾
func newTestRegistry() *internal.Registry {
	catalog := internal.NewCatalog(testDefs(), nil)
	return internal.NewRegistry(testConfig(), catalog, testLogger())
}

// newSpawningRegistry 帶掉落表的註冊表，entries 以 tick 為單位掉落
func newSpawningRegistry(entries []internal.DropEntry) *internal.Registry {
	catalog := internal.NewCatalog(testDefs(), entries)
	return internal.NewRegistry(testConfig(), catalog, testLogger())
}

// decodePayload 解出訊息的強型別 payload
func decodePayload[T any](t *testing.T, m internal.Message) T {
	t.Helper()
	var v T
	require.NoError(t, m.DecodeData(&v))
	return v
}

// fillRoom 建房加人直到開賽，回傳雙方 Session 與 transport
func fillRoom(t *testing.T, reg *internal.Registry, roomName string) (a, b *internal.Session, atr, btr *fakeTransport) {
	t.Helper()

	a, atr = newTestSession("PlayerA")
	b, btr = newTestSession("PlayerB")

	require.NoError(t, reg.CreateRoom(a, internal.CreateRoomPayload{Name: roomName, MaxPlayers: 2}))
	require.NoError(t, reg.JoinRoom(b, internal.JoinRoomPayload{RoomName: roomName}))
	return a, b, atr, btr
}
