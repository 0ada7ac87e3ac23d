package spec

import (
	"encoding/json"

	"github.com/zintix-labs/banditlab/errs"
	"gopkg.in/yaml.v3"
)

// GetScenarioByYAML
// 會讀取 YAML 設定、初始化各拉臂並執行基本檢查後回傳。
func GetScenarioByYAML(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	if err := s.init(); err != nil {
		return nil, errs.Wrap(err, "scenario initialized err")
	}

	return s, nil
}

// GetScenarioByJSON
// 會讀取 JSON 設定、初始化各拉臂並執行基本檢查後回傳。
func GetScenarioByJSON(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	if err := s.init(); err != nil {
		return nil, errs.Wrap(err, "scenario initialized err")
	}

	return s, nil
}

// GetSimSettingByYAML
// 會讀取 YAML 的掃描設定、補預設值並檢查後回傳。
func GetSimSettingByYAML(data []byte) (*SimSetting, error) {
	ss := &SimSetting{}
	if err := yaml.Unmarshal(data, ss); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}
	if err := ss.Init(); err != nil {
		return nil, errs.Wrap(err, "sim setting initialized err")
	}
	return ss, nil
}
