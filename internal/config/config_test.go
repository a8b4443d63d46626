package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func minimalConfig() *Config {
	return &Config{
		Mysql: MysqlConfig{Database: "advisor"},
		Clusters: []ClusterSpec{{
			Name:            "cluster-a",
			YarnApiUrl:      "http://rm:8088",
			SparkHistoryUrl: "http://history:18080",
		}},
	}
}

func TestCompleteDefaults(t *testing.T) {
	cfg := minimalConfig()
	err := cfg.Complete()
	assert.NoError(t, err)

	assert.Equal(t, DefaultMysqlHost, cfg.Mysql.Host)
	assert.Equal(t, DefaultMysqlPort, cfg.Mysql.Port)
	assert.Equal(t, DefaultClusterConcurrency, cfg.ClusterConcurrency)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, DefaultRunTimeout, cfg.RunTimeout)
	assert.Equal(t, DefaultOpenAIModel, cfg.OpenAIModel)
	assert.Equal(t, DefaultOpenAIBaseURL, cfg.OpenAIBaseUrl)

	assert.Equal(t, DefaultMinExecutors, cfg.Limits.MinExecutors)
	assert.Equal(t, DefaultMaxExecutors, cfg.Limits.MaxExecutors)
	assert.Equal(t, DefaultMinCores, cfg.Limits.MinCores)
	assert.Equal(t, DefaultMaxCores, cfg.Limits.MaxCores)
	assert.Equal(t, DefaultMinMemoryMB, cfg.Limits.MinMemoryMB)
	assert.Equal(t, DefaultMaxMemoryMB, cfg.Limits.MaxMemoryMB)
	assert.Equal(t, DefaultMemBaselineMB, cfg.Limits.PerExecutorMemBaseline)

	assert.Equal(t, 1, len(cfg.ResolvedClusters))
	assert.Equal(t, 0, len(cfg.InvalidClusters))
}

func TestCompleteRequiresDatabase(t *testing.T) {
	cfg := minimalConfig()
	cfg.Mysql.Database = ""
	assert.Error(t, cfg.Complete())
}

func TestCompleteRequiresClusters(t *testing.T) {
	cfg := minimalConfig()
	cfg.Clusters = nil
	assert.Error(t, cfg.Complete())
}

func TestCompleteEndpointFallback(t *testing.T) {
	/*
		API地址缺失时回退使用UI地址
	*/
	cfg := minimalConfig()
	cfg.Clusters = []ClusterSpec{{
		Name:       "cluster-a",
		YarnUiUrl:  "http://rm-ui:8088",
		SparkUiUrl: "http://spark-ui:4040",
	}}
	err := cfg.Complete()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(cfg.ResolvedClusters))
	assert.Equal(t, "http://rm-ui:8088", cfg.ResolvedClusters[0].YarnApiUrl)
	assert.Equal(t, "http://spark-ui:4040", cfg.ResolvedClusters[0].SparkHistoryUrl)

	/*
		两个地址都有时API地址优先
	*/
	cfg = minimalConfig()
	cfg.Clusters[0].YarnUiUrl = "http://rm-ui:8088"
	err = cfg.Complete()
	assert.NoError(t, err)
	assert.Equal(t, "http://rm:8088", cfg.ResolvedClusters[0].YarnApiUrl)
}

func TestCompleteCollectsInvalidClusters(t *testing.T) {
	cfg := minimalConfig()
	cfg.Clusters = append(cfg.Clusters,
		ClusterSpec{Name: "no-endpoints"},
		ClusterSpec{Name: "only-yarn", YarnApiUrl: "http://rm:8088"},
		ClusterSpec{YarnApiUrl: "http://unnamed:8088", SparkHistoryUrl: "http://unnamed:18080"},
	)

	err := cfg.Complete()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(cfg.ResolvedClusters))
	assert.Equal(t, 3, len(cfg.InvalidClusters))
	for _, ce := range cfg.InvalidClusters {
		assert.Error(t, ce.Err)
	}
}

func TestCompleteRejectsDuplicateNames(t *testing.T) {
	cfg := minimalConfig()
	cfg.Clusters = append(cfg.Clusters, cfg.Clusters[0])
	assert.Error(t, cfg.Complete())
}

func TestCompleteValidatesLimits(t *testing.T) {
	cfg := minimalConfig()
	cfg.Limits.MinExecutors = 10
	cfg.Limits.MaxExecutors = 5
	assert.Error(t, cfg.Complete())

	cfg = minimalConfig()
	cfg.Limits.MinMemoryMB = 20000
	cfg.Limits.MaxMemoryMB = 1024
	assert.Error(t, cfg.Complete())
}

func TestMysqlDSN(t *testing.T) {
	m := MysqlConfig{Host: "db", Port: 3307, User: "root", Password: "secret", Database: "advisor"}
	assert.Equal(t, "root:secret@tcp(db:3307)/advisor?charset=utf8mb4&parseTime=True&loc=Local", m.DSN())
}

func TestLoadCustomSlaJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sla.json")
	content := `{
		"application_1_0001": {"category": "weekly"},
		"daily-etl": {"category": "daily", "threshold_ms": 86400000}
	}`
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		assert.FailNow(t, "写入测试文件出错")
	}

	entries, err := LoadCustomSla(path)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(entries))
	assert.Equal(t, "weekly", entries["application_1_0001"].Category)
	assert.Equal(t, int64(86400000), entries["daily-etl"].ThresholdMillis)
}

func TestLoadCustomSlaYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sla.yaml")
	content := "application_1_0001:\n  category: weekly\ndaily-etl:\n  category: daily\n  threshold_ms: 86400000\n"
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		assert.FailNow(t, "写入测试文件出错")
	}

	entries, err := LoadCustomSla(path)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(entries))
	assert.Equal(t, "daily", entries["daily-etl"].Category)
}

func TestLoadCustomSlaErrors(t *testing.T) {
	/*
		路径为空时返回空映射
	*/
	entries, err := LoadCustomSla("")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(entries))

	/*
		文件不存在
	*/
	_, err = LoadCustomSla(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	/*
		不支持的扩展名
	*/
	path := filepath.Join(t.TempDir(), "sla.toml")
	_ = ioutil.WriteFile(path, []byte("x"), 0644)
	_, err = LoadCustomSla(path)
	assert.Error(t, err)

	/*
		内容解析失败
	*/
	path = filepath.Join(t.TempDir(), "bad.json")
	_ = ioutil.WriteFile(path, []byte("{not json"), 0644)
	_, err = LoadCustomSla(path)
	assert.Error(t, err)
}
