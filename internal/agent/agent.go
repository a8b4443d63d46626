package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/packagewjx/spark-resource-advisor/internal/analyzer"
	"github.com/packagewjx/spark-resource-advisor/internal/config"
	"github.com/packagewjx/spark-resource-advisor/internal/fetcher"
	"github.com/packagewjx/spark-resource-advisor/internal/gitsync"
	"github.com/packagewjx/spark-resource-advisor/internal/notify"
	"github.com/packagewjx/spark-resource-advisor/internal/profiler"
	"github.com/packagewjx/spark-resource-advisor/internal/recommend"
	"github.com/packagewjx/spark-resource-advisor/internal/store"
	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/pkg/errors"
)

// Agent 持有流水线各组件共享的依赖（配置、数据库连接、外部客户端），
// 启动时构造一次，之后以引用传递，避免模块级可变状态。
type Agent struct {
	cfg      *config.Config
	dao      store.Dao
	factory  profiler.FetcherFactory
	provider recommend.SuggestionProvider
	notifier notify.Notifier
	syncer   *gitsync.Syncer
	logger   *log.Logger
}

// New 构造Agent并连接数据库，表结构在此幂等创建
func New(cfg *config.Config) (*Agent, error) {
	dao, err := store.NewDao(cfg.Mysql)
	if err != nil {
		return nil, err
	}

	var provider recommend.SuggestionProvider
	if cfg.OpenAIApiKey != "" {
		provider = recommend.NewOpenAIProvider(cfg.OpenAIApiKey, cfg.OpenAIModel, cfg.OpenAIBaseUrl)
	}

	retry := fetcher.RetryConfig{
		Timeout:    cfg.FetchTimeout,
		MaxElapsed: cfg.FetchMaxElapsed,
	}

	return &Agent{
		cfg:      cfg,
		dao:      dao,
		factory:  profiler.DefaultFetcherFactory(retry),
		provider: provider,
		notifier: notify.NewSlackNotifier(cfg.SlackWebhookUrl),
		syncer:   gitsync.NewSyncer(cfg.GitRepoPath, cfg.GitRemoteUrl),
		logger:   log.New(os.Stdout, "agent: ", log.LstdFlags|log.Lshortfile|log.Lmsgprefix),
	}, nil
}

// Profile 采集所有集群的作业与executor指标。部分集群失败只上报，
// 全部失败时返回错误。
func (a *Agent) Profile(ctx context.Context) error {
	p := profiler.New(a.dao, a.cfg, a.factory)
	summary, err := p.Run(ctx)
	if summary != nil {
		for _, r := range summary.Errors() {
			a.logger.Printf("集群%s采集失败：%v\n", r.ClusterName, r.Err)
		}
		a.logger.Printf("采集结束，%d/%d个集群成功\n", summary.Succeeded(), len(summary.Results))
	}
	return err
}

// Analyse 先把自定义SLA文件同步到查询表，再对所有已采集的作业分类
func (a *Agent) Analyse(ctx context.Context) error {
	customSla, err := a.loadCustomSla()
	if err != nil {
		return err
	}

	_, err = analyzer.New(a.dao, customSla).Run()
	return err
}

// Recommend 为所有已分析的作业生成新版本建议，并完成通知与Git同步。
// 通知与Git失败只记录，不影响动作结果。
func (a *Agent) Recommend(ctx context.Context) error {
	engine := recommend.NewEngine(a.dao, a.provider, a.cfg.Limits)
	summary, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	a.syncRecommendations(summary.Created)
	a.notifySummary(summary.Created)
	return nil
}

// Full 依次执行profile、analyse与recommend
func (a *Agent) Full(ctx context.Context) error {
	if err := a.Profile(ctx); err != nil {
		return err
	}
	if err := a.Analyse(ctx); err != nil {
		return err
	}
	return a.Recommend(ctx)
}

// loadCustomSla 读取自定义SLA：配置了文件时以文件为准并同步到数据库，
// 否则沿用数据库中已有的记录。
func (a *Agent) loadCustomSla() (map[string]config.CustomSlaEntry, error) {
	if a.cfg.CustomSlaFile == "" {
		return a.dao.QueryCustomSla()
	}

	customSla, err := config.LoadCustomSla(a.cfg.CustomSlaFile)
	if err != nil {
		return nil, err
	}
	if err := a.dao.ReplaceCustomSla(customSla); err != nil {
		return nil, errors.Wrap(err, "同步自定义SLA到数据库出错")
	}
	return customSla, nil
}

func (a *Agent) syncRecommendations(recs []*core.Recommendation) {
	if a.syncer == nil || len(recs) == 0 {
		return
	}

	if err := a.syncer.InitRepo(); err != nil {
		a.logger.Printf("初始化Git仓库失败：%v\n", err)
		return
	}

	files := make([]string, 0, len(recs))
	for _, rec := range recs {
		file, err := a.syncer.WriteRecommendation(rec)
		if err != nil {
			a.logger.Printf("写入建议文件失败：%v\n", err)
			continue
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return
	}

	if err := a.syncer.Commit(files, fmt.Sprintf("Update recommendations for %d jobs", len(files))); err != nil {
		a.logger.Printf("提交建议文件失败：%v\n", err)
		return
	}
	if err := a.syncer.Push(); err != nil {
		a.logger.Printf("推送建议文件失败：%v\n", err)
	}
}

func (a *Agent) notifySummary(recs []*core.Recommendation) {
	if a.notifier == nil || len(recs) == 0 {
		return
	}

	lines := make([]string, 0, len(recs)+1)
	lines = append(lines, "Job recommendations updated:")
	for _, rec := range recs {
		lines = append(lines, fmt.Sprintf(
			"Job %s/%s (v%d): category=%s, executors=%d, memory=%dMB, cores=%d, source=%s",
			rec.ClusterName, rec.AppId, rec.Version, rec.Category,
			rec.NumExecutors, rec.ExecutorMemoryMB, rec.ExecutorCores, rec.Source))
	}

	if err := a.notifier.Send(strings.Join(lines, "\n")); err != nil {
		a.logger.Printf("发送通知失败：%v\n", err)
	}
}
