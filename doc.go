// Package boomdash 是 BoomDash 的權威比賽伺服器。
//
// 為一款雙人即時街機遊戲協調對戰房間，涵蓋以下核心功能：
//
// # 房間生命週期
//
// 建立、加入、列表與清理：
//   - 房名為唯一鍵，重名拒絕
//   - 私密房以密碼保護，列表永不洩漏密碼
//   - 加入順序即玩家順位
//   - 滿房自動開賽，空房自動拆除
//
// # 即時狀態轉發
//
// 伺服器信任客戶端回報的位置（原始設計如此），只做原樣轉發：
//   - 移動訊息轉發給房內其他玩家
//   - 道具拾取由伺服器仲裁，先到先得
//   - 背包入金原子地轉為分數
//
// # 背景排程
//
// 每個進行中的房間擁有：
//   - 掉落表每條項目一個獨立的道具產生迴圈
//   - 一條每秒遞減並廣播的倒數計時迴圈
//
// 兩者都以 context 控制世代：重賽或解散會先取消舊世代，
// 確保不會有兩代排程同時寫入房間狀態。
//
// # 傳輸協議
//
// 以換行分隔的 JSON 信封，TCP 與 WebSocket 共用同一套格式：
//
//	{"Type": 0, "Data": "{\"Name\":\"Arena1\",\"IsPrivate\":false,...}"}
//
// Type 為與客戶端 enum 對應的整數，Data 為二次編碼的 payload 字串。
//
// 啟動服務器：
//
//	catalog := internal.LoadCatalog("data/Item.csv", "data/ItemDrop.csv", logger)
//	registry := internal.NewRegistry(cfg, catalog, logger)
//	router := internal.NewRouter(registry, logger)
//	server := internal.NewServer(registry, router, logger)
//	if err := server.Start(":7777"); err != nil {
//	    log.Fatal(err)
//	}
package boomdash
