package store

import (
	"sort"
	"sync"

	"github.com/packagewjx/spark-resource-advisor/internal/config"
	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"gorm.io/gorm"
)

// memoryDao 是Dao的内存实现，语义与MySQL实现一致（去重更新、状态不回退、
// 版本单调递增），供测试与离线试运行使用。
type memoryDao struct {
	mu              sync.Mutex
	jobs            map[string]*core.Job
	executorMetrics map[string][]*core.ExecutorMetric
	recommendations map[string][]*core.Recommendation
	customSla       map[string]config.CustomSlaEntry
}

var _ Dao = &memoryDao{}

func NewMemoryDao() Dao {
	return &memoryDao{
		jobs:            map[string]*core.Job{},
		executorMetrics: map[string][]*core.ExecutorMetric{},
		recommendations: map[string][]*core.Recommendation{},
		customSla:       map[string]config.CustomSlaEntry{},
	}
}

func jobKey(clusterName, appId string) string {
	return clusterName + "/" + appId
}

func (d *memoryDao) SaveClusterJobs(clusterName string, jobs []*core.Job, metrics map[string][]*core.ExecutorMetric) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, job := range jobs {
		key := jobKey(clusterName, job.AppId)
		existing, ok := d.jobs[key]
		if !ok {
			copied := *job
			copied.State = core.StateProfiled
			d.jobs[key] = &copied
		} else {
			existing.User = job.User
			existing.Name = job.Name
			existing.Queue = job.Queue
			existing.YarnState = job.YarnState
			existing.FinalStatus = job.FinalStatus
			existing.StartedTime = job.StartedTime
			existing.FinishedTime = job.FinishedTime
			existing.ElapsedMillis = job.ElapsedMillis
			existing.MemorySeconds = job.MemorySeconds
			existing.VcoreSeconds = job.VcoreSeconds
			if core.ShouldAdvance(existing.State, core.StateProfiled) {
				existing.State = core.StateProfiled
			}
		}

		if arr, ok := metrics[job.AppId]; ok {
			replaced := make([]*core.ExecutorMetric, len(arr))
			for i, m := range arr {
				copied := *m
				replaced[i] = &copied
			}
			d.executorMetrics[key] = replaced
		}
	}
	return nil
}

func (d *memoryDao) AdvanceJobState(clusterName, appId string, next core.JobState) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	job, ok := d.jobs[jobKey(clusterName, appId)]
	if !ok {
		return ErrJobNotFound
	}
	if core.ShouldAdvance(job.State, next) {
		job.State = next
	}
	return nil
}

func (d *memoryDao) SaveJobAnalysis(job *core.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.jobs[jobKey(job.ClusterName, job.AppId)]
	if !ok {
		return ErrJobNotFound
	}
	existing.Category = job.Category
	existing.CategorySource = job.CategorySource
	existing.UtilStatus = job.UtilStatus
	existing.AvgCpuCores = job.AvgCpuCores
	existing.AvgMemoryMB = job.AvgMemoryMB
	existing.Notes = job.Notes
	if core.ShouldAdvance(existing.State, core.StateAnalysed) {
		existing.State = core.StateAnalysed
	}
	return nil
}

func (d *memoryDao) SaveRecommendation(rec *core.Recommendation) (uint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := jobKey(rec.ClusterName, rec.AppId)
	var current uint
	for _, r := range d.recommendations[key] {
		if r.Version > current {
			current = r.Version
		}
	}

	copied := *rec
	copied.Version = current + 1
	d.recommendations[key] = append(d.recommendations[key], &copied)
	return copied.Version, nil
}

func (d *memoryDao) ReplaceCustomSla(entries map[string]config.CustomSlaEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.customSla = map[string]config.CustomSlaEntry{}
	for k, v := range entries {
		d.customSla[k] = v
	}
	return nil
}

func (d *memoryDao) QueryJobsByMinState(min core.JobState) ([]*core.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]string, 0, len(d.jobs))
	for key, job := range d.jobs {
		if job.State.Rank() >= min.Rank() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	result := make([]*core.Job, 0, len(keys))
	for _, key := range keys {
		copied := *d.jobs[key]
		result = append(result, &copied)
	}
	return result, nil
}

func (d *memoryDao) QueryExecutorMetrics(clusterName, appId string) ([]*core.ExecutorMetric, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	arr := d.executorMetrics[jobKey(clusterName, appId)]
	result := make([]*core.ExecutorMetric, len(arr))
	for i, m := range arr {
		copied := *m
		result[i] = &copied
	}
	return result, nil
}

func (d *memoryDao) QueryRecommendations(clusterName, appId string) ([]*core.Recommendation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	arr := d.recommendations[jobKey(clusterName, appId)]
	result := make([]*core.Recommendation, len(arr))
	for i, r := range arr {
		copied := *r
		result[i] = &copied
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

func (d *memoryDao) QueryLatestRecommendation(clusterName, appId string) (*core.Recommendation, error) {
	all, err := d.QueryRecommendations(clusterName, appId)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[len(all)-1], nil
}

func (d *memoryDao) QueryCustomSla() (map[string]config.CustomSlaEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := make(map[string]config.CustomSlaEntry, len(d.customSla))
	for k, v := range d.customSla {
		result[k] = v
	}
	return result, nil
}

// DB 内存实现没有底层连接
func (d *memoryDao) DB() *gorm.DB {
	return nil
}

// JobCount 返回当前作业数，便于测试断言不重复插入
func (d *memoryDao) JobCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}
