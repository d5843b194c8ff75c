package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 整個伺服器的配置
type Config struct {
	Server struct {
		TCPPort int    `yaml:"tcp_port"` // 遊戲協議的 TCP 監聽埠
		WSAddr  string `yaml:"ws_addr"`  // WebSocket 閘道的監聽位址
	} `yaml:"server"`

	Match struct {
		Seconds int `yaml:"seconds"` // 單場比賽長度（秒）

		// 一「秒」的實際長度。倒數計時與掉落表的間隔都以此為單位，
		// 正式環境維持 1s，測試縮短以加速倒數。
		// yaml.v3 不認得 time.Duration，檔案裡以字串表示（"1s"、"500ms"）。
		TickInterval     time.Duration `yaml:"-"`
		TickIntervalText string        `yaml:"tick_interval"`

		BagCapacity    int `yaml:"bag_capacity"`     // 背包上限
		CurrencyItemID int `yaml:"currency_item_id"` // 收集用貨幣道具的定義 ID

		Field struct {
			MinX float64 `yaml:"min_x"`
			MaxX float64 `yaml:"max_x"`
			MinY float64 `yaml:"min_y"`
			MaxY float64 `yaml:"max_y"`
		} `yaml:"field"`
	} `yaml:"match"`

	Data struct {
		ItemCatalog string `yaml:"item_catalog"`
		DropTable   string `yaml:"drop_table"`
	} `yaml:"data"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultConfig 返回預設配置（對應原始遊戲的常數）
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.TCPPort = 7777
	cfg.Server.WSAddr = ":8080"
	cfg.Match.Seconds = 300
	cfg.Match.TickInterval = time.Second
	cfg.Match.BagCapacity = 5
	cfg.Match.CurrencyItemID = 10000
	cfg.Match.Field.MinX = -8
	cfg.Match.Field.MaxX = 8
	cfg.Match.Field.MinY = -4
	cfg.Match.Field.MaxY = 4
	cfg.Data.ItemCatalog = "data/Item.csv"
	cfg.Data.DropTable = "data/ItemDrop.csv"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// LoadConfig 載入配置檔，未設定的欄位保留預設值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Match.TickIntervalText != "" {
		d, err := time.ParseDuration(cfg.Match.TickIntervalText)
		if err != nil {
			return nil, fmt.Errorf("parse tick_interval: %w", err)
		}
		cfg.Match.TickInterval = d
	}
	if cfg.Match.TickInterval <= 0 {
		cfg.Match.TickInterval = time.Second
	}
	return cfg, nil
}
