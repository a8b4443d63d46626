package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// CustomSlaEntry 是自定义SLA文件中的一条记录，键为应用ID或作业名称。
// ThresholdMillis是预留字段，当前的分类逻辑不会使用它，仅原样保留。
type CustomSlaEntry struct {
	Category        string `json:"category" yaml:"category"`
	ThresholdMillis int64  `json:"threshold_ms" yaml:"threshold_ms"`
}

// LoadCustomSla 按扩展名读取JSON或YAML格式的自定义SLA文件。
// 文件格式错误属于配置错误，直接返回。path为空时返回空映射。
func LoadCustomSla(path string) (map[string]CustomSlaEntry, error) {
	result := map[string]CustomSlaEntry{}
	if path == "" {
		return result, nil
	}

	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("读取自定义SLA文件%s出错", path))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(content, &result)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &result)
	default:
		return nil, fmt.Errorf("不支持的自定义SLA文件格式：%s，仅支持json与yaml", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("解析自定义SLA文件%s出错", path))
	}

	return result, nil
}
