package config

import (
	"fmt"
	"time"

	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DefaultMysqlHost          = "localhost"
	DefaultMysqlPort          = 3306
	DefaultClusterConcurrency = 4
	DefaultFetchTimeout       = 30 * time.Second
	DefaultFetchMaxElapsed    = 2 * time.Minute
	DefaultRunTimeout         = 30 * time.Minute

	DefaultMinExecutors  = 1
	DefaultMaxExecutors  = 50
	DefaultMinCores      = 1
	DefaultMaxCores      = 8
	DefaultMinMemoryMB   = 512
	DefaultMaxMemoryMB   = 16384
	DefaultMemBaselineMB = 2048
	DefaultOpenAIModel   = "gpt-4"
	DefaultOpenAIBaseURL = "https://api.openai.com"
)

// ClusterSpec 是配置文件中一个集群的原始定义。API地址缺失时回退使用对应的UI地址。
type ClusterSpec struct {
	Name            string `mapstructure:"name"`
	YarnApiUrl      string `mapstructure:"yarn_api_url"`
	YarnUiUrl       string `mapstructure:"yarn_ui_url"`
	SparkHistoryUrl string `mapstructure:"spark_history_url"`
	SparkUiUrl      string `mapstructure:"spark_ui_url"`
}

// Cluster 是解析完成的集群定义，两个端点都已确定，运行期间不再变更。
type Cluster struct {
	Name            string
	YarnApiUrl      string
	SparkHistoryUrl string
}

// ClusterError 记录某个集群的配置错误，不影响其他集群
type ClusterError struct {
	Name string
	Err  error
}

type MysqlConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// DSN 返回gorm mysql驱动使用的连接串
func (m MysqlConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.User, m.Password, m.Host, m.Port, m.Database)
}

type Config struct {
	Clusters        []ClusterSpec `mapstructure:"clusters"`
	Mysql           MysqlConfig   `mapstructure:"mysql"`
	OpenAIApiKey    string        `mapstructure:"openai_api_key"`
	OpenAIModel     string        `mapstructure:"openai_model"`
	OpenAIBaseUrl   string        `mapstructure:"openai_base_url"`
	SlackWebhookUrl string        `mapstructure:"slack_webhook_url"`
	GitRepoPath     string        `mapstructure:"git_repo_path"`
	GitRemoteUrl    string        `mapstructure:"git_remote_url"`
	CustomSlaFile   string        `mapstructure:"custom_sla_file"`

	ClusterConcurrency int           `mapstructure:"cluster_concurrency"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	FetchMaxElapsed    time.Duration `mapstructure:"fetch_max_elapsed"`
	RunTimeout         time.Duration `mapstructure:"run_timeout"`

	Limits core.SizingLimits `mapstructure:"limits"`

	// Complete()的解析产物。合法集群进入ResolvedClusters，配置有误的进入InvalidClusters，
	// 由profile阶段作为该集群的错误上报。
	ResolvedClusters []Cluster      `mapstructure:"-"`
	InvalidClusters  []ClusterError `mapstructure:"-"`
}

// FromViper 从viper实例构造配置。调用方应提前完成配置文件与环境变量的读取。
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "解析配置出错")
	}
	if err := cfg.Complete(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Complete 填充默认值并校验配置，同时把每个集群解析为确定的端点。
// 单个集群的端点缺失只标记该集群出错，不使整个配置失效。
func (c *Config) Complete() error {
	if c.Mysql.Host == "" {
		c.Mysql.Host = DefaultMysqlHost
	}
	if c.Mysql.Port == 0 {
		c.Mysql.Port = DefaultMysqlPort
	}
	if c.Mysql.Database == "" {
		return fmt.Errorf("必须配置mysql.database")
	}

	if c.ClusterConcurrency <= 0 {
		c.ClusterConcurrency = DefaultClusterConcurrency
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.FetchMaxElapsed <= 0 {
		c.FetchMaxElapsed = DefaultFetchMaxElapsed
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = DefaultOpenAIModel
	}
	if c.OpenAIBaseUrl == "" {
		c.OpenAIBaseUrl = DefaultOpenAIBaseURL
	}

	if err := c.completeLimits(); err != nil {
		return err
	}

	if len(c.Clusters) == 0 {
		return fmt.Errorf("未配置任何集群")
	}

	c.ResolvedClusters = c.ResolvedClusters[:0]
	c.InvalidClusters = c.InvalidClusters[:0]
	seen := map[string]bool{}
	for _, spec := range c.Clusters {
		if spec.Name == "" {
			c.InvalidClusters = append(c.InvalidClusters, ClusterError{
				Name: spec.Name,
				Err:  fmt.Errorf("集群缺少name字段"),
			})
			continue
		}
		if seen[spec.Name] {
			return fmt.Errorf("集群名称%s重复", spec.Name)
		}
		seen[spec.Name] = true

		yarn := spec.YarnApiUrl
		if yarn == "" {
			yarn = spec.YarnUiUrl
		}
		spark := spec.SparkHistoryUrl
		if spark == "" {
			spark = spec.SparkUiUrl
		}
		if yarn == "" || spark == "" {
			c.InvalidClusters = append(c.InvalidClusters, ClusterError{
				Name: spec.Name,
				Err:  fmt.Errorf("集群%s缺少YARN或Spark端点，API地址与UI地址均未配置", spec.Name),
			})
			continue
		}
		c.ResolvedClusters = append(c.ResolvedClusters, Cluster{
			Name:            spec.Name,
			YarnApiUrl:      yarn,
			SparkHistoryUrl: spark,
		})
	}

	return nil
}

func (c *Config) completeLimits() error {
	l := &c.Limits
	if l.MinExecutors == 0 {
		l.MinExecutors = DefaultMinExecutors
	}
	if l.MaxExecutors == 0 {
		l.MaxExecutors = DefaultMaxExecutors
	}
	if l.MinCores == 0 {
		l.MinCores = DefaultMinCores
	}
	if l.MaxCores == 0 {
		l.MaxCores = DefaultMaxCores
	}
	if l.MinMemoryMB == 0 {
		l.MinMemoryMB = DefaultMinMemoryMB
	}
	if l.MaxMemoryMB == 0 {
		l.MaxMemoryMB = DefaultMaxMemoryMB
	}
	if l.PerExecutorMemBaseline == 0 {
		l.PerExecutorMemBaseline = DefaultMemBaselineMB
	}

	if l.MinExecutors > l.MaxExecutors {
		return fmt.Errorf("limits配置有误：MinExecutors(%d)大于MaxExecutors(%d)", l.MinExecutors, l.MaxExecutors)
	}
	if l.MinCores > l.MaxCores {
		return fmt.Errorf("limits配置有误：MinCores(%d)大于MaxCores(%d)", l.MinCores, l.MaxCores)
	}
	if l.MinMemoryMB > l.MaxMemoryMB {
		return fmt.Errorf("limits配置有误：MinMemoryMB(%d)大于MaxMemoryMB(%d)", l.MinMemoryMB, l.MaxMemoryMB)
	}
	return nil
}
