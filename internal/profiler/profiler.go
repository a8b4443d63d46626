package profiler

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/packagewjx/spark-resource-advisor/internal/config"
	"github.com/packagewjx/spark-resource-advisor/internal/fetcher"
	"github.com/packagewjx/spark-resource-advisor/internal/store"
	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrNoClusterSucceeded 表示没有任何集群采集成功，整个profile动作失败
var ErrNoClusterSucceeded = fmt.Errorf("没有任何集群采集成功")

// Fetchers 是一个集群的两个数据源客户端
type Fetchers struct {
	Yarn  fetcher.YarnClient
	Spark fetcher.SparkClient
}

// FetcherFactory 按集群构造客户端，测试时可以替换为假实现
type FetcherFactory func(cluster config.Cluster) Fetchers

// DefaultFetcherFactory 返回使用真实HTTP客户端的工厂
func DefaultFetcherFactory(retry fetcher.RetryConfig) FetcherFactory {
	return func(cluster config.Cluster) Fetchers {
		return Fetchers{
			Yarn:  fetcher.NewYarnClient(cluster.YarnApiUrl, retry),
			Spark: fetcher.NewSparkClient(cluster.SparkHistoryUrl, retry),
		}
	}
}

// ClusterResult 是单个集群的采集结果。Err非空时该集群本轮完全没有落库。
type ClusterResult struct {
	ClusterName      string
	JobCount         int
	SkippedRecords   int // 缺少必需字段被跳过的作业记录数
	SkippedExecutors int // executor指标获取失败被跳过的作业数
	Err              error
}

// Summary 汇总一次profile动作所有集群的结果
type Summary struct {
	Results []ClusterResult
}

// Succeeded 返回成功采集的集群数量
func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Errors 返回所有集群级错误
func (s *Summary) Errors() []ClusterResult {
	result := make([]ClusterResult, 0)
	for _, r := range s.Results {
		if r.Err != nil {
			result = append(result, r)
		}
	}
	return result
}

type Profiler struct {
	dao         store.Dao
	clusters    []config.Cluster
	invalid     []config.ClusterError
	factory     FetcherFactory
	concurrency int
	logger      *log.Logger
}

func New(dao store.Dao, cfg *config.Config, factory FetcherFactory) *Profiler {
	return &Profiler{
		dao:         dao,
		clusters:    cfg.ResolvedClusters,
		invalid:     cfg.InvalidClusters,
		factory:     factory,
		concurrency: cfg.ClusterConcurrency,
		logger:      log.New(os.Stdout, "profiler: ", log.LstdFlags|log.Lshortfile|log.Lmsgprefix),
	}
}

// Run 并发地采集所有集群。单个集群的失败只记录在结果里，不影响其他集群；
// 只有所有集群都失败时才返回ErrNoClusterSucceeded。
func (p *Profiler) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{Results: make([]ClusterResult, 0, len(p.clusters)+len(p.invalid))}

	// 配置阶段已经判定失败的集群直接记为集群级错误
	for _, ce := range p.invalid {
		summary.Results = append(summary.Results, ClusterResult{
			ClusterName: ce.Name,
			Err:         ce.Err,
		})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.concurrency)

	for _, cluster := range p.clusters {
		cluster := cluster
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				mu.Lock()
				summary.Results = append(summary.Results, ClusterResult{
					ClusterName: cluster.Name,
					Err:         gctx.Err(),
				})
				mu.Unlock()
				return nil
			}

			result := p.profileCluster(gctx, cluster)

			mu.Lock()
			summary.Results = append(summary.Results, result)
			mu.Unlock()
			// 集群间互相隔离，错误不向errgroup传播
			return nil
		})
	}

	_ = g.Wait()

	if summary.Succeeded() == 0 {
		return summary, ErrNoClusterSucceeded
	}
	return summary, nil
}

// profileCluster 采集一个集群：先完成全部网络请求并在内存中归一化，
// 最后一次事务落库，确保取消或失败时不会留下半个集群的数据。
func (p *Profiler) profileCluster(ctx context.Context, cluster config.Cluster) ClusterResult {
	result := ClusterResult{ClusterName: cluster.Name}

	p.logger.Printf("正在采集集群%s\n", cluster.Name)
	clients := p.factory(cluster)

	apps, err := clients.Yarn.ListApplications(ctx, []string{"RUNNING", "FINISHED"}, []string{"SPARK"})
	if err != nil {
		result.Err = errors.Wrap(err, fmt.Sprintf("获取集群%s的应用列表失败", cluster.Name))
		return result
	}

	jobs := make([]*core.Job, 0, len(apps))
	metrics := make(map[string][]*core.ExecutorMetric)
	for _, app := range apps {
		job, ok := normalizeJob(cluster.Name, app)
		if !ok {
			p.logger.Printf("集群%s的应用%s缺少必需字段，跳过\n", cluster.Name, app.Id)
			result.SkippedRecords++
			continue
		}
		jobs = append(jobs, job)

		executors, err := clients.Spark.ListExecutors(ctx, app.Id)
		if err != nil {
			// 单个应用的executor获取失败不影响该应用的作业记录本身
			p.logger.Printf("获取集群%s应用%s的executor指标失败：%v\n", cluster.Name, app.Id, err)
			result.SkippedExecutors++
			continue
		}
		metrics[app.Id] = normalizeExecutors(cluster.Name, app.Id, executors)
	}

	// 取消发生时整个集群作废，不部分落库
	if ctx.Err() != nil {
		result.Err = errors.Wrap(ctx.Err(), fmt.Sprintf("集群%s的采集被中止", cluster.Name))
		return result
	}

	if err := p.dao.SaveClusterJobs(cluster.Name, jobs, metrics); err != nil {
		result.Err = errors.Wrap(err, fmt.Sprintf("集群%s的数据落库失败", cluster.Name))
		return result
	}

	result.JobCount = len(jobs)
	p.logger.Printf("集群%s采集完成，写入%d条作业，跳过%d条记录\n", cluster.Name, result.JobCount, result.SkippedRecords)
	return result
}

// normalizeJob 校验必需字段并转换为内部作业结构。
// 应用ID、开始时间、运行时长、memorySeconds与vcoreSeconds缺一不可。
func normalizeJob(clusterName string, app fetcher.YarnApplication) (*core.Job, bool) {
	if app.Id == "" || app.StartedTime == nil || app.ElapsedTime == nil ||
		app.MemorySeconds == nil || app.VcoreSeconds == nil {
		return nil, false
	}

	return &core.Job{
		ClusterName:   clusterName,
		AppId:         app.Id,
		User:          app.User,
		Name:          app.Name,
		Queue:         app.Queue,
		YarnState:     app.State,
		FinalStatus:   app.FinalStatus,
		StartedTime:   *app.StartedTime,
		FinishedTime:  app.FinishedTime,
		ElapsedMillis: *app.ElapsedTime,
		MemorySeconds: *app.MemorySeconds,
		VcoreSeconds:  *app.VcoreSeconds,
		State:         core.StateProfiled,
	}, true
}

func normalizeExecutors(clusterName, appId string, executors []fetcher.SparkExecutor) []*core.ExecutorMetric {
	result := make([]*core.ExecutorMetric, 0, len(executors))
	for _, ex := range executors {
		id := ex.Id
		if id == "" {
			id = ex.HostPort
		}
		if id == "" {
			continue
		}
		result = append(result, &core.ExecutorMetric{
			ClusterName:         clusterName,
			AppId:               appId,
			ExecutorId:          id,
			Cores:               ex.TotalCores,
			MaxMemory:           ex.MaxMemory,
			MemoryUsed:          ex.MemoryUsed,
			TotalTasks:          ex.TotalTasks,
			CompletedTasks:      ex.CompletedTasks,
			TotalDurationMillis: ex.TotalDuration,
			TotalGCTimeMillis:   ex.TotalGCTime,
		})
	}
	return result
}
