package analyzer

import (
	"fmt"
	"log"
	"os"

	"github.com/packagewjx/spark-resource-advisor/internal/config"
	"github.com/packagewjx/spark-resource-advisor/internal/store"
	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/pkg/errors"
)

// SLA类别的时长阈值，单位毫秒，严格递增互不重叠
const (
	HourlyThresholdMillis   int64 = 60 * 60 * 1000
	TwoHoursThresholdMillis int64 = 2 * 60 * 60 * 1000
	DailyThresholdMillis    int64 = 24 * 60 * 60 * 1000
	WeeklyThresholdMillis   int64 = 7 * 24 * 60 * 60 * 1000
	MonthlyThresholdMillis  int64 = 30 * 24 * 60 * 60 * 1000
)

// 利用率判断的经验阈值
const (
	lowCpuCores  = 0.1
	highCpuCores = 4
	lowMemoryMB  = 256
	highMemoryMB = 16384
)

// Categorize 根据运行时长与自定义SLA确定作业类别。
// 自定义条目按应用ID匹配优先于按名称匹配，命中时类别原样采用。
// 超过30天的作业同样归为monthly，这是定义好的边界行为而非遗漏。
// 本函数是(elapsedMillis, customSla)的纯函数，重复执行结果一致。
func Categorize(elapsedMillis int64, appId, name string, customSla map[string]config.CustomSlaEntry) (core.Category, core.CategorySource) {
	if entry, ok := customSla[appId]; ok && entry.Category != "" {
		return core.Category(entry.Category), core.CategorySourceCustom
	}
	if entry, ok := customSla[name]; ok && name != "" && entry.Category != "" {
		return core.Category(entry.Category), core.CategorySourceCustom
	}

	switch {
	case elapsedMillis <= HourlyThresholdMillis:
		return core.CategoryHourly, core.CategorySourceComputed
	case elapsedMillis <= TwoHoursThresholdMillis:
		return core.CategoryTwoHours, core.CategorySourceComputed
	case elapsedMillis <= DailyThresholdMillis:
		return core.CategoryDaily, core.CategorySourceComputed
	case elapsedMillis <= WeeklyThresholdMillis:
		return core.CategoryWeekly, core.CategorySourceComputed
	default:
		return core.CategoryMonthly, core.CategorySourceComputed
	}
}

// Utilisation 根据平均CPU核数与平均内存判断利用率状态，并给出说明
func Utilisation(avgCpuCores, avgMemoryMB float64) (string, string) {
	if avgCpuCores > highCpuCores {
		return core.UtilOverutilised, "CPU平均用量偏高，作业可能需要更多核数"
	}
	if avgMemoryMB > highMemoryMB {
		return core.UtilOverutilised, "内存平均用量偏高，作业可能需要更多内存"
	}
	if avgCpuCores > 0 && avgCpuCores < lowCpuCores {
		return core.UtilUnderutilised, "CPU平均用量偏低，可考虑减少executor或核数"
	}
	if avgMemoryMB > 0 && avgMemoryMB < lowMemoryMB {
		return core.UtilUnderutilised, "内存平均用量偏低，可考虑减少executor内存"
	}
	return core.UtilNormal, ""
}

// Summary 汇总一次analyse动作的结果
type Summary struct {
	Analysed int
	Skipped  int // 缺少运行时长无法分析的作业数
}

type Analyzer struct {
	dao       store.Dao
	customSla map[string]config.CustomSlaEntry
	logger    *log.Logger
}

func New(dao store.Dao, customSla map[string]config.CustomSlaEntry) *Analyzer {
	if customSla == nil {
		customSla = map[string]config.CustomSlaEntry{}
	}
	return &Analyzer{
		dao:       dao,
		customSla: customSla,
		logger:    log.New(os.Stdout, "analyzer: ", log.LstdFlags|log.Lshortfile|log.Lmsgprefix),
	}
}

// Run 对所有状态不早于PROFILED的作业计算平均用量与SLA类别，并推进状态到ANALYSED。
// 分类是确定性的，重复执行不会改变结果。
func (a *Analyzer) Run() (*Summary, error) {
	jobs, err := a.dao.QueryJobsByMinState(core.StateProfiled)
	if err != nil {
		return nil, errors.Wrap(err, "读取待分析作业出错")
	}

	a.logger.Printf("正在分析%d个作业\n", len(jobs))

	summary := &Summary{}
	for _, job := range jobs {
		if job.ElapsedMillis <= 0 {
			a.logger.Printf("作业%s/%s缺少运行时长，跳过分析\n", job.ClusterName, job.AppId)
			summary.Skipped++
			continue
		}

		elapsedSec := float64(job.ElapsedMillis) / 1000
		job.AvgCpuCores = float64(job.VcoreSeconds) / elapsedSec
		job.AvgMemoryMB = float64(job.MemorySeconds) / elapsedSec
		job.Category, job.CategorySource = Categorize(job.ElapsedMillis, job.AppId, job.Name, a.customSla)
		job.UtilStatus, job.Notes = Utilisation(job.AvgCpuCores, job.AvgMemoryMB)
		if job.CategorySource == core.CategorySourceCustom {
			job.Notes = fmt.Sprintf("应用了自定义SLA，类别为%s", job.Category)
		}

		if err := a.dao.SaveJobAnalysis(job); err != nil {
			return summary, errors.Wrap(err, fmt.Sprintf("保存作业%s/%s的分析结果出错", job.ClusterName, job.AppId))
		}
		summary.Analysed++
	}

	a.logger.Printf("分析完成，共%d个作业，跳过%d个\n", summary.Analysed, summary.Skipped)
	return summary, nil
}
