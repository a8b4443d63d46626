package store

import (
	"gorm.io/gorm"
)

// JobDO 对应jobs表，(cluster_name, app_id)全局唯一，重复采集只更新不重复插入。
// 流水线不会删除作业记录，保留作为历史审计数据。
type JobDO struct {
	gorm.Model
	ClusterName    string `gorm:"uniqueIndex:job_key;type:VARCHAR(64);not null"`
	AppId          string `gorm:"uniqueIndex:job_key;type:VARCHAR(64);not null"`
	User           string `gorm:"type:VARCHAR(64)"`
	Name           string `gorm:"type:VARCHAR(255)"`
	Queue          string `gorm:"type:VARCHAR(64)"`
	YarnState      string `gorm:"type:VARCHAR(32)"`
	FinalStatus    string `gorm:"type:VARCHAR(32)"`
	StartedTime    int64
	FinishedTime   int64
	ElapsedMillis  int64
	MemorySeconds  int64
	VcoreSeconds   int64
	State          string `gorm:"type:VARCHAR(16);index"`
	Category       string `gorm:"type:VARCHAR(64)"`
	CategorySource string `gorm:"type:VARCHAR(16)"`
	UtilStatus     string `gorm:"type:VARCHAR(16)"`
	AvgCpuCores    float64
	AvgMemoryMB    float64
	Notes          string `gorm:"type:TEXT"`
}

// ExecutorMetricDO 对应executor_metrics表，归属于唯一的作业，
// 同一作业重新采集时整体替换。
type ExecutorMetricDO struct {
	gorm.Model
	ClusterName         string `gorm:"uniqueIndex:executor_key;type:VARCHAR(64);not null"`
	AppId               string `gorm:"uniqueIndex:executor_key;type:VARCHAR(64);not null"`
	ExecutorId          string `gorm:"uniqueIndex:executor_key;type:VARCHAR(64);not null"`
	Cores               int
	MaxMemory           int64
	MemoryUsed          int64
	TotalTasks          int
	CompletedTasks      int
	TotalDurationMillis int64
	TotalGCTimeMillis   int64
}

// RecommendationDO 对应recommendations表，(cluster_name, app_id, version)唯一，
// version按作业单调递增，历史版本写入后不再修改。
type RecommendationDO struct {
	gorm.Model
	ClusterName      string `gorm:"uniqueIndex:recommendation_key;type:VARCHAR(64);not null"`
	AppId            string `gorm:"uniqueIndex:recommendation_key;type:VARCHAR(64);not null"`
	Version          uint   `gorm:"uniqueIndex:recommendation_key;not null"`
	Category         string `gorm:"type:VARCHAR(64)"`
	NumExecutors     int
	ExecutorMemoryMB int
	ExecutorCores    int
	Source           string `gorm:"type:VARCHAR(16)"`
	Notes            string `gorm:"type:TEXT"`
}

// CustomSlaDO 是自定义SLA的查询表，每次analyse前由配置文件整体同步而来
type CustomSlaDO struct {
	gorm.Model
	Identifier      string `gorm:"uniqueIndex;type:VARCHAR(255);not null"`
	Category        string `gorm:"type:VARCHAR(64)"`
	ThresholdMillis int64
}
