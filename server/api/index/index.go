// Package index 提供服務主頁：列出可用 endpoints，方便人肉探索。
package index

import (
	"net/http"
)

const indexHTML = `<!doctype html>
<html lang="zh-Hant">
<head><meta charset="utf-8" /><title>Banditlab</title></head>
<body style="font-family:monospace;background:#0f172a;color:#e2e8f0;padding:24px;">
<h1>banditlab</h1>
<p>budget-constrained multi-armed bandit lab</p>
<ul>
  <li>GET  /v1/scenarios — 情境目錄</li>
  <li>GET|POST /v1/play — 單場試驗 (uid, sid, policy, budget, seed?, trace?)</li>
  <li>GET|POST /v1/sim — 策略 × 預算 掃描</li>
  <li>GET|POST /v1/estimate — 掃描 + 逐格分布評估</li>
  <li>POST /v1/simbycfg — 以 JSON 情境設定掃描</li>
  <li>POST /v1/stat — 外部試驗資料重算統計</li>
  <li>GET  /v1/metrics — pool 觀測</li>
  <li>GET  /dev — Dev Panel</li>
</ul>
</body>
</html>`

func IndexHandlerFn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}
