// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package buf

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/spec"
)

// PlayRequest 是單一試驗請求：指定情境、策略、預算與可選的 seed。
type PlayRequest struct {
	UID      string         `json:"uid"`             // 唯一識別碼
	Scenario spec.SID       `json:"sid"`             // 情境編號
	Policy   spec.PolicyKey `json:"policy"`          // 策略名稱
	Budget   float64        `json:"budget"`          // 試驗預算
	Seed     *int64         `json:"seed,omitempty"`  // 指定 seed（可重現）
	Trace    bool           `json:"trace,omitempty"` // 是否回傳逐回合軌跡
}

// DecodePlayRequest 會把 HTTP 請求解碼成 PlayRequest。
//
// 支援：
//   - GET：從 query string 讀取參數（uid/sid/policy/budget/seed/trace）。
//   - POST：從 JSON body 反序列化。
//
// 注意：
//   - 這裡只負責「解碼（decode）」與基本型別轉換，不做任何業務合法性校驗；
//     合法性（例如該 SID 是否存在、budget 是否為正）應由上層（Runtime）決定。
//   - 為避免過大 body 影響服務，POST 會對 body 做大小限制（預設 1MiB）。
func DecodePlayRequest(r *http.Request) (*PlayRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}

	req := new(PlayRequest)

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.UID = q.Get("uid")
		req.Policy = spec.PolicyKey(q.Get("policy"))

		if s := q.Get("sid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 0)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid sid: %v", err))
			}
			req.Scenario = spec.SID(u)
		}

		if s := q.Get("budget"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid budget: %v", err))
			}
			req.Budget = v
		}

		if s := q.Get("seed"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid seed: %v", err))
			}
			req.Seed = &v
		}

		if s := q.Get("trace"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid trace: %v", err))
			}
			req.Trace = v
		}

		return req, nil

	case http.MethodPost:
		// 防止 body 過大（預設 1MiB）
		const maxBody = 1 << 20
		body := io.LimitReader(r.Body, maxBody)
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("method not allowed")
	}
}
