package gitsync

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestNewSyncerEmptyPath(t *testing.T) {
	assert.Nil(t, NewSyncer("", ""))
}

func TestWriteRecommendation(t *testing.T) {
	repo := t.TempDir()
	syncer := NewSyncer(repo, "")

	rec := &core.Recommendation{
		ClusterName:      "cluster-a",
		AppId:            "application_1_0001",
		Version:          2,
		Category:         core.CategoryHourly,
		NumExecutors:     4,
		ExecutorMemoryMB: 3072,
		ExecutorCores:    2,
		Source:           core.SourceHeuristic,
		Notes:            "基于平均用量的启发式建议",
	}

	rel, err := syncer.WriteRecommendation(rec)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("recommendations", "cluster-a", "application_1_0001.json"), rel)

	content, err := ioutil.ReadFile(filepath.Join(repo, rel))
	assert.NoError(t, err)

	dest := map[string]interface{}{}
	assert.NoError(t, json.Unmarshal(content, &dest))
	assert.Equal(t, "cluster-a", dest["cluster_name"])
	assert.Equal(t, "application_1_0001", dest["app_id"])
	assert.Equal(t, float64(2), dest["version"])
	assert.Equal(t, float64(4), dest["recommended_executors"])
	assert.Equal(t, "heuristic", dest["source"])

	/*
		重复写入覆盖同一个文件
	*/
	rec.Version = 3
	rel2, err := syncer.WriteRecommendation(rec)
	assert.NoError(t, err)
	assert.Equal(t, rel, rel2)

	content, _ = ioutil.ReadFile(filepath.Join(repo, rel))
	_ = json.Unmarshal(content, &dest)
	assert.Equal(t, float64(3), dest["version"])
}
