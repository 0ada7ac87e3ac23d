package spec

import (
	"bytes"

	"github.com/zintix-labs/banditlab/errs"
	"gopkg.in/yaml.v3"
)

// DecodeFixed 會把 s.Fixed 由 map[string]any 轉成你要的型別 T。
// T 應該是 struct，out 傳指標，例如自訂策略的調參區塊：
//
//	type GreedyFixed struct{ Epsilon float64 `yaml:"epsilon"` }
//
// 自訂策略（經 policy.Register 掛入）靠這個入口拿到情境檔裡
// 自己的設定，而不需要改動 Scenario 的結構。
func DecodeFixed[T any](s *Scenario, out *T) error {
	// 先把 map[string]any -> YAML bytes
	bs, err := yaml.Marshal(s.Fixed)
	if err != nil {
		return errs.Wrap(err, "spec.fixed_decoder : marshal failed")
	}
	// 再把 YAML bytes -> 自定義的型別
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true) // 嚴格檢查：多寫/拼錯欄位就報錯
	if err = dec.Decode(out); err != nil {
		return errs.Wrap(err, "spec.fixed_decoder : decode failed")
	}
	return nil
}
