package stats

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SweepReportRender 定義輸出行為
type SweepReportRender interface {
	Write(w io.Writer, r *SweepReport) error
}

// Json渲染
type JsonSweepReportRender struct{}

func (jr *JsonSweepReportRender) Write(w io.Writer, r *SweepReport) error {
	return json.NewEncoder(w).Encode(r)
}

// YAML渲染
type YAMLSweepReportRender struct{}

func (yr *YAMLSweepReportRender) Write(w io.Writer, r *SweepReport) error {
	// 不管欄位，只要是陣列（YAML Sequence），就維持外層預設展開；
	// 只有「最內層的一維陣列」或「本身就是一維陣列」時才輸出成 flow style：[..., ...]
	return forceReadableList(w, r)
}

// CSV渲染：每格一列，欄位順序固定，方便外部工具直接載入比較。
type CSVSweepReportRender struct{}

func (cr *CSVSweepReportRender) Write(w io.Writer, r *SweepReport) error {
	cw := csv.NewWriter(w)
	header := []string{
		"algorithm", "budget", "trials",
		"avg_reward", "std_reward", "avg_regret", "std_regret",
		"optimal_static_reward_expected",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range r.Cells {
		row := []string{
			string(c.Policy),
			fmtF(c.Budget),
			strconv.Itoa(c.Trials),
			fmtF(c.AvgReward),
			fmtF(c.StdReward),
			fmtF(c.AvgRegret),
			fmtF(c.StdRegret),
			fmtF(r.Summary.OptimalRate * c.Budget),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtF(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

type EstimatorRender interface {
	Write(w io.Writer, e *EstimatorCell) error
}

// Json渲染
type JsonEstimatorRender struct{}

func (jr *JsonEstimatorRender) Write(w io.Writer, e *EstimatorCell) error {
	return json.NewEncoder(w).Encode(e)
}

// YAML渲染
type YAMLEstimatorRender struct{}

func (yr *YAMLEstimatorRender) Write(w io.Writer, e *EstimatorCell) error {
	// 不管欄位，只要是陣列（YAML Sequence），就維持外層預設展開；
	// 只有「最內層的一維陣列」或「本身就是一維陣列」時才輸出成 flow style：[..., ...]
	return forceReadableList(w, e)
}

// YAML 內層方法
func forceReadableList[T any](w io.Writer, t *T) error {
	var node yaml.Node
	if err := node.Encode(t); err != nil {
		return err
	}

	// 自頂向下調整所有 sequence node 的 style：
	// - 若該 sequence 內部「沒有子 sequence」，代表它是最內層的一維（或本身就是一維）=> 用 flow style: [...]
	// - 若該 sequence 內部「有子 sequence」，代表它是外層維度 => 保持預設 block（展開）
	styleReadableSequences(&node)

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&node)
}

func styleReadableSequences(n *yaml.Node) {
	if n == nil {
		return
	}

	switch n.Kind {
	case yaml.DocumentNode, yaml.MappingNode:
		for _, c := range n.Content {
			styleReadableSequences(c)
		}
		return

	case yaml.SequenceNode:
		// 先判斷這個 sequence 是否包含子 sequence（代表外層維度）
		hasChildSeq := false
		for _, c := range n.Content {
			if c != nil && c.Kind == yaml.SequenceNode {
				hasChildSeq = true
				break
			}
		}

		// 先遞迴處理子節點（讓最內層先被標記成 flow）
		for _, c := range n.Content {
			styleReadableSequences(c)
		}

		// 最內層一維（或本身就是一維）=> flow style: [a, b, c]
		// 外層維度 => 保持預設 block style（不強制設定 style）
		if !hasChildSeq {
			n.Style = yaml.FlowStyle
		}
		return

	default:
		// Scalar / Alias 等不處理
		return
	}
}
