package recommend

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/packagewjx/spark-resource-advisor/internal/store"
	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/pkg/errors"
)

// SuggestionProvider 提供外部（如大模型）的候选配置。返回值不可信，
// 引擎会对每个字段做范围约束后才会采用。
type SuggestionProvider interface {
	Suggest(ctx context.Context, job *core.Job, avg core.JobAverages) (*core.SizingSuggestion, error)
}

// safetyMargin 是在平均内存用量基础上预留的安全系数
const safetyMargin = 1.5

// Averages 计算作业在executor层面的聚合指标
func Averages(metrics []*core.ExecutorMetric) core.JobAverages {
	avg := core.JobAverages{NumExecutors: len(metrics)}
	if len(metrics) == 0 {
		return avg
	}

	var cpuSum, memSum float64
	for _, m := range metrics {
		cpuSum += m.CoreSeconds()
		memSum += m.MemorySecondsMB()
	}
	avg.AvgCpuSeconds = cpuSum / float64(len(metrics))
	avg.AvgMemSeconds = memSum / float64(len(metrics))
	return avg
}

// ProposeSizing 按固定公式计算启发式配置。所有字段都会被约束到limits范围内，
// 对合法输入总有确定的输出。相同输入必然产生相同结果。
func ProposeSizing(job *core.Job, avg core.JobAverages, limits core.SizingLimits) core.Recommendation {
	elapsedSec := float64(job.ElapsedMillis) / 1000

	// 平均内存用量除以单executor基准内存，得到executor数量
	avgMemoryMB := float64(job.MemorySeconds) / elapsedSec
	numExecutors := limits.ClampExecutors(int(math.Round(avgMemoryMB / float64(limits.PerExecutorMemBaseline))))

	// 平均核数摊到每个executor上
	avgCores := float64(job.VcoreSeconds) / elapsedSec
	cores := limits.ClampCores(int(math.Round(avgCores / float64(numExecutors))))

	// executor内存以executor级平均用量为基础，乘以安全系数；
	// 没有executor指标时退化为作业级平均内存摊到每个executor
	var memoryMB float64
	if avg.AvgMemSeconds > 0 {
		memoryMB = avg.AvgMemSeconds / elapsedSec * safetyMargin
	} else {
		memoryMB = avgMemoryMB / float64(numExecutors) * safetyMargin
	}
	executorMemoryMB := limits.ClampMemoryMB(int(math.Round(memoryMB)))

	return core.Recommendation{
		ClusterName:      job.ClusterName,
		AppId:            job.AppId,
		Category:         job.Category,
		NumExecutors:     numExecutors,
		ExecutorCores:    cores,
		ExecutorMemoryMB: executorMemoryMB,
		Source:           core.SourceHeuristic,
		Notes:            "基于平均用量的启发式建议",
	}
}

// MergeSuggestion 将外部建议合并到启发式结果上。每个字段独立处理：
// 缺失的字段沿用启发式值，给出的字段一律约束到limits范围内。
// 建议为nil时原样返回启发式结果；否则结果来源记为ai-clamped。
// 无论外部建议多么极端，返回值的三个数值字段都落在[Min, Max]闭区间内。
func MergeSuggestion(heuristic core.Recommendation, suggestion *core.SizingSuggestion, limits core.SizingLimits) core.Recommendation {
	if suggestion == nil {
		return heuristic
	}

	result := heuristic
	result.Source = core.SourceAIClamped
	if suggestion.NumExecutors != nil {
		result.NumExecutors = limits.ClampExecutors(*suggestion.NumExecutors)
	}
	if suggestion.ExecutorCores != nil {
		result.ExecutorCores = limits.ClampCores(*suggestion.ExecutorCores)
	}
	if suggestion.ExecutorMemoryMB != nil {
		result.ExecutorMemoryMB = limits.ClampMemoryMB(*suggestion.ExecutorMemoryMB)
	}
	if suggestion.RawText != "" {
		result.Notes = suggestion.RawText
	}
	return result
}

// Summary 汇总一次recommend动作的结果
type Summary struct {
	Created []*core.Recommendation
	Skipped int // 指标不足无法计算的作业数
}

type Engine struct {
	dao      store.Dao
	provider SuggestionProvider // 可以为nil，此时只使用启发式结果
	limits   core.SizingLimits
	logger   *log.Logger
}

func NewEngine(dao store.Dao, provider SuggestionProvider, limits core.SizingLimits) *Engine {
	return &Engine{
		dao:      dao,
		provider: provider,
		limits:   limits,
		logger:   log.New(os.Stdout, "recommend: ", log.LstdFlags|log.Lshortfile|log.Lmsgprefix),
	}
}

// Run 对所有状态不早于ANALYSED的作业各生成一条新版本的建议，并推进状态到RECOMMENDED。
// 指标不足的作业跳过并计数。同一作业的写入全部在当前goroutine内顺序完成。
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	jobs, err := e.dao.QueryJobsByMinState(core.StateAnalysed)
	if err != nil {
		return nil, errors.Wrap(err, "读取待生成建议的作业出错")
	}

	e.logger.Printf("正在为%d个作业生成建议\n", len(jobs))

	summary := &Summary{Created: make([]*core.Recommendation, 0, len(jobs))}
	for _, job := range jobs {
		if job.ElapsedMillis <= 0 || job.MemorySeconds <= 0 || job.VcoreSeconds < 0 {
			e.logger.Printf("作业%s/%s的指标不足，跳过\n", job.ClusterName, job.AppId)
			summary.Skipped++
			continue
		}

		metrics, err := e.dao.QueryExecutorMetrics(job.ClusterName, job.AppId)
		if err != nil {
			return summary, err
		}
		avg := Averages(metrics)

		rec := ProposeSizing(job, avg, e.limits)
		if e.provider != nil {
			suggestion, err := e.provider.Suggest(ctx, job, avg)
			if err != nil {
				// 外部建议不可用时静默退化为启发式结果
				e.logger.Printf("作业%s/%s的外部建议不可用，使用启发式结果：%v\n", job.ClusterName, job.AppId, err)
			} else {
				rec = MergeSuggestion(rec, suggestion, e.limits)
			}
		}

		version, err := e.dao.SaveRecommendation(&rec)
		if err != nil {
			return summary, err
		}
		rec.Version = version

		if err := e.dao.AdvanceJobState(job.ClusterName, job.AppId, core.StateRecommended); err != nil {
			return summary, errors.Wrap(err, fmt.Sprintf("推进作业%s/%s状态出错", job.ClusterName, job.AppId))
		}

		summary.Created = append(summary.Created, &rec)
	}

	e.logger.Printf("建议生成完成，共%d条，跳过%d个作业\n", len(summary.Created), summary.Skipped)
	return summary, nil
}
