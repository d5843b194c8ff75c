package internal

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// EffectType 道具效果種類
type EffectType int

const (
	EffectNone        EffectType = iota // 無效果（例如純收集用的貨幣）
	EffectScore                         // 直接加分
	EffectMoveSpeedUp                   // 移動速度增益
)

// parseEffectType 解析效果欄位，接受名稱或數字，無法辨識時退回 None
func parseEffectType(raw string) EffectType {
	switch raw {
	case "None":
		return EffectNone
	case "Score":
		return EffectScore
	case "PlayerMoveSpeedUp":
		return EffectMoveSpeedUp
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= int(EffectNone) && n <= int(EffectMoveSpeedUp) {
		return EffectType(n)
	}
	return EffectNone
}

// ItemDef 道具定義，啟動時載入後不再變動
type ItemDef struct {
	ID       int
	Name     string
	Category string
	Effect   EffectType
	Value1   float64
	Value2   float64
	Duration float64
}

// DropEntry 掉落表的一條項目：哪種道具、一次掉幾個、間隔幾秒
//
// 比賽進行中，每條項目對應一個獨立的產生迴圈。
type DropEntry struct {
	ItemID      int
	Name        string
	QuantityMin int
	QuantityMax int
	DropTime    int // 掉落間隔（秒）
}

// Catalog 靜態參考資料：道具定義與掉落表
type Catalog struct {
	defs  map[int]ItemDef
	drops []DropEntry
}

// NewCatalog 以既有資料建立目錄（測試用）
func NewCatalog(defs []ItemDef, drops []DropEntry) *Catalog {
	c := &Catalog{defs: make(map[int]ItemDef, len(defs)), drops: drops}
	for _, d := range defs {
		c.defs[d.ID] = d
	}
	return c
}

// LoadCatalog 從 CSV 檔載入道具定義與掉落表
//
// 啟動錯誤一律降級處理：檔案不存在或整檔損毀時記錄警告並回傳
// 空目錄——空掉落表只代表永遠不會有道具出現，絕不讓伺服器崩潰。
func LoadCatalog(itemPath, dropPath string, logger *slog.Logger) *Catalog {
	c := &Catalog{defs: make(map[int]ItemDef)}
	c.loadItems(itemPath, logger)
	c.loadDrops(dropPath, logger)
	return c
}

// Item 查詢道具定義
func (c *Catalog) Item(id int) (ItemDef, bool) {
	def, ok := c.defs[id]
	return def, ok
}

// ItemCount 已載入的道具定義數
func (c *Catalog) ItemCount() int {
	return len(c.defs)
}

// DropEntries 掉落表（呼叫端不得修改）
func (c *Catalog) DropEntries() []DropEntry {
	return c.drops
}

func (c *Catalog) loadItems(path string, logger *slog.Logger) {
	rows, ok := readRows(path, logger)
	if !ok {
		return
	}
	for _, raw := range rows {
		cols := strings.Split(raw, ",")
		if len(cols) < 7 {
			logger.Warn("道具定義欄位不足，略過", "line", raw)
			continue
		}

		id, err1 := strconv.Atoi(strings.TrimSpace(cols[0]))
		v1, err2 := strconv.ParseFloat(strings.TrimSpace(cols[4]), 64)
		v2, err3 := strconv.ParseFloat(strings.TrimSpace(cols[5]), 64)
		dur, err4 := strconv.ParseFloat(strings.TrimSpace(cols[6]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			logger.Warn("道具定義格式錯誤，略過", "line", raw)
			continue
		}

		c.defs[id] = ItemDef{
			ID:       id,
			Name:     strings.TrimSpace(cols[1]),
			Category: strings.TrimSpace(cols[2]),
			Effect:   parseEffectType(strings.TrimSpace(cols[3])),
			Value1:   v1,
			Value2:   v2,
			Duration: dur,
		}
	}
	logger.Info("道具定義載入完成", "path", path, "count", len(c.defs))
}

func (c *Catalog) loadDrops(path string, logger *slog.Logger) {
	rows, ok := readRows(path, logger)
	if !ok {
		return
	}
	for _, raw := range rows {
		cols := strings.Split(raw, ",")
		if len(cols) < 5 {
			logger.Warn("掉落表欄位不足，略過", "line", raw)
			continue
		}

		id, err1 := strconv.Atoi(strings.TrimSpace(cols[0]))
		qmin, err2 := strconv.Atoi(strings.TrimSpace(cols[2]))
		qmax, err3 := strconv.Atoi(strings.TrimSpace(cols[3]))
		period, err4 := strconv.Atoi(strings.TrimSpace(cols[4]))
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			logger.Warn("掉落表格式錯誤，略過", "line", raw)
			continue
		}

		c.drops = append(c.drops, DropEntry{
			ItemID:      id,
			Name:        strings.TrimSpace(cols[1]),
			QuantityMin: qmin,
			QuantityMax: qmax,
			DropTime:    period,
		})
	}
	logger.Info("掉落表載入完成", "path", path, "count", len(c.drops))
}

// readRows 讀取 CSV 的資料列：跳過首行表頭、空白行與 # 開頭的註解行
func readRows(path string, logger *slog.Logger) ([]string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("找不到參考資料檔", "path", path, "error", err)
		return nil, false
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	var rows []string
	for i, line := range lines {
		if i == 0 { // 表頭
			continue
		}
		raw := strings.TrimSpace(line)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		rows = append(rows, raw)
	}
	return rows, true
}
