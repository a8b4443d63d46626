package store

import (
	"fmt"
	"log"
	"os"

	"github.com/packagewjx/spark-resource-advisor/internal/config"
	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrJobNotFound = fmt.Errorf("作业不存在")

type UpdateDao interface {
	// SaveClusterJobs 在一个事务内写入一个集群本轮采集到的全部作业与executor指标，
	// 保证单个集群要么全部落库要么完全不落库。作业按(clusterName, appId)去重更新，
	// 状态推进到PROFILED但绝不回退；executor指标按作业整体替换。
	SaveClusterJobs(clusterName string, jobs []*core.Job, metrics map[string][]*core.ExecutorMetric) error

	// AdvanceJobState 将作业状态向前推进。作业已越过next时不做任何修改。
	AdvanceJobState(clusterName, appId string, next core.JobState) error

	// SaveJobAnalysis 写入分析结果（类别、利用率状态与平均值）并把状态推进到ANALYSED
	SaveJobAnalysis(job *core.Job) error

	// SaveRecommendation 插入一条新版本的建议并返回版本号。历史版本不会被修改。
	SaveRecommendation(rec *core.Recommendation) (uint, error)

	// ReplaceCustomSla 用给定内容整体替换自定义SLA查询表
	ReplaceCustomSla(entries map[string]config.CustomSlaEntry) error
}

type QueryDao interface {
	QueryJobsByMinState(min core.JobState) ([]*core.Job, error)
	QueryExecutorMetrics(clusterName, appId string) ([]*core.ExecutorMetric, error)
	QueryRecommendations(clusterName, appId string) ([]*core.Recommendation, error)
	QueryLatestRecommendation(clusterName, appId string) (*core.Recommendation, error)
	QueryCustomSla() (map[string]config.CustomSlaEntry, error)
}

type Dao interface {
	DB() *gorm.DB
	UpdateDao
	QueryDao
}

type daoImpl struct {
	db     *gorm.DB
	logger *log.Logger
}

var _ Dao = &daoImpl{}

// NewDao 连接MySQL并幂等地创建表结构
func NewDao(cfg config.MysqlConfig) (Dao, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "", 0), logger.Config{
			LogLevel: logger.Silent,
		}),
	})
	if err != nil {
		return nil, errors.Wrap(err, "连接数据库错误")
	}

	err = db.AutoMigrate(&JobDO{}, &ExecutorMetricDO{}, &RecommendationDO{}, &CustomSlaDO{})
	if err != nil {
		return nil, errors.Wrap(err, "创建表格时出现异常")
	}

	return &daoImpl{
		db:     db,
		logger: log.New(os.Stdout, "Dao: ", log.LstdFlags|log.Lshortfile|log.Lmsgprefix),
	}, nil
}

// NewDaoWithDB 使用已有连接构造Dao，主要供测试使用
func NewDaoWithDB(db *gorm.DB) Dao {
	return &daoImpl{
		db:     db,
		logger: log.New(os.Stdout, "Dao: ", log.LstdFlags|log.Lshortfile|log.Lmsgprefix),
	}
}

func (d *daoImpl) SaveClusterJobs(clusterName string, jobs []*core.Job, metrics map[string][]*core.ExecutorMetric) error {
	d.logger.Printf("正在写入集群%s的%d条作业记录\n", clusterName, len(jobs))

	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, job := range jobs {
			dest := &JobDO{}
			err := tx.First(dest, &JobDO{ClusterName: clusterName, AppId: job.AppId}).Error
			if err != nil && err != gorm.ErrRecordNotFound {
				return errors.Wrap(err, fmt.Sprintf("查询作业%s/%s出错", clusterName, job.AppId))
			}

			created := err == gorm.ErrRecordNotFound
			// 重新采集只刷新元数据，已推进的状态与分析结果保持不变
			dest.ClusterName = clusterName
			dest.AppId = job.AppId
			dest.User = job.User
			dest.Name = job.Name
			dest.Queue = job.Queue
			dest.YarnState = job.YarnState
			dest.FinalStatus = job.FinalStatus
			dest.StartedTime = job.StartedTime
			dest.FinishedTime = job.FinishedTime
			dest.ElapsedMillis = job.ElapsedMillis
			dest.MemorySeconds = job.MemorySeconds
			dest.VcoreSeconds = job.VcoreSeconds
			if created || core.ShouldAdvance(core.JobState(dest.State), core.StateProfiled) {
				dest.State = string(core.StateProfiled)
			}

			if err := tx.Save(dest).Error; err != nil {
				return errors.Wrap(err, fmt.Sprintf("保存作业%s/%s出错", clusterName, job.AppId))
			}

			arr, ok := metrics[job.AppId]
			if !ok {
				continue
			}
			err = tx.Unscoped().
				Where("cluster_name = ? AND app_id = ?", clusterName, job.AppId).
				Delete(&ExecutorMetricDO{}).Error
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("删除作业%s/%s旧的executor指标出错", clusterName, job.AppId))
			}
			for _, m := range arr {
				do := &ExecutorMetricDO{
					ClusterName:         clusterName,
					AppId:               job.AppId,
					ExecutorId:          m.ExecutorId,
					Cores:               m.Cores,
					MaxMemory:           m.MaxMemory,
					MemoryUsed:          m.MemoryUsed,
					TotalTasks:          m.TotalTasks,
					CompletedTasks:      m.CompletedTasks,
					TotalDurationMillis: m.TotalDurationMillis,
					TotalGCTimeMillis:   m.TotalGCTimeMillis,
				}
				if err := tx.Create(do).Error; err != nil {
					return errors.Wrap(err, fmt.Sprintf("插入作业%s/%s的executor指标出错", clusterName, job.AppId))
				}
			}
		}
		return nil
	})
}

func (d *daoImpl) AdvanceJobState(clusterName, appId string, next core.JobState) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		dest := &JobDO{}
		err := tx.First(dest, &JobDO{ClusterName: clusterName, AppId: appId}).Error
		if err == gorm.ErrRecordNotFound {
			return ErrJobNotFound
		} else if err != nil {
			return errors.Wrap(err, fmt.Sprintf("查询作业%s/%s出错", clusterName, appId))
		}

		if !core.ShouldAdvance(core.JobState(dest.State), next) {
			return nil
		}
		dest.State = string(next)
		return tx.Save(dest).Error
	})
}

func (d *daoImpl) SaveJobAnalysis(job *core.Job) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		dest := &JobDO{}
		err := tx.First(dest, &JobDO{ClusterName: job.ClusterName, AppId: job.AppId}).Error
		if err == gorm.ErrRecordNotFound {
			return ErrJobNotFound
		} else if err != nil {
			return errors.Wrap(err, fmt.Sprintf("查询作业%s/%s出错", job.ClusterName, job.AppId))
		}

		dest.Category = string(job.Category)
		dest.CategorySource = string(job.CategorySource)
		dest.UtilStatus = job.UtilStatus
		dest.AvgCpuCores = job.AvgCpuCores
		dest.AvgMemoryMB = job.AvgMemoryMB
		dest.Notes = job.Notes
		if core.ShouldAdvance(core.JobState(dest.State), core.StateAnalysed) {
			dest.State = string(core.StateAnalysed)
		}
		return tx.Save(dest).Error
	})
}

func (d *daoImpl) SaveRecommendation(rec *core.Recommendation) (uint, error) {
	var version uint
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var current uint
		row := tx.Model(&RecommendationDO{}).
			Where("cluster_name = ? AND app_id = ?", rec.ClusterName, rec.AppId).
			Select("COALESCE(MAX(version), 0)").Row()
		if err := row.Scan(&current); err != nil {
			return errors.Wrap(err, "查询当前建议版本出错")
		}

		version = current + 1
		do := &RecommendationDO{
			ClusterName:      rec.ClusterName,
			AppId:            rec.AppId,
			Version:          version,
			Category:         string(rec.Category),
			NumExecutors:     rec.NumExecutors,
			ExecutorMemoryMB: rec.ExecutorMemoryMB,
			ExecutorCores:    rec.ExecutorCores,
			Source:           string(rec.Source),
			Notes:            rec.Notes,
		}
		return tx.Create(do).Error
	})
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("保存作业%s/%s的建议出错", rec.ClusterName, rec.AppId))
	}

	d.logger.Printf("已写入作业%s/%s的第%d版建议\n", rec.ClusterName, rec.AppId, version)
	return version, nil
}

func (d *daoImpl) ReplaceCustomSla(entries map[string]config.CustomSlaEntry) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Unscoped().Where("1 = 1").Delete(&CustomSlaDO{}).Error
		if err != nil {
			return errors.Wrap(err, "清空自定义SLA表出错")
		}
		for identifier, entry := range entries {
			do := &CustomSlaDO{
				Identifier:      identifier,
				Category:        entry.Category,
				ThresholdMillis: entry.ThresholdMillis,
			}
			if err := tx.Create(do).Error; err != nil {
				return errors.Wrap(err, fmt.Sprintf("插入自定义SLA记录%s出错", identifier))
			}
		}
		return nil
	})
}

func (d *daoImpl) QueryJobsByMinState(min core.JobState) ([]*core.Job, error) {
	states := make([]string, 0, 4)
	for _, s := range []core.JobState{core.StateNew, core.StateProfiled, core.StateAnalysed, core.StateRecommended} {
		if s.Rank() >= min.Rank() {
			states = append(states, string(s))
		}
	}

	doarr := make([]*JobDO, 0)
	err := d.db.Where("state IN ?", states).Find(&doarr).Error
	if err != nil {
		return nil, errors.Wrap(err, "查询作业列表出错")
	}

	result := make([]*core.Job, len(doarr))
	for i, do := range doarr {
		result[i] = jobFromDO(do)
	}
	return result, nil
}

func (d *daoImpl) QueryExecutorMetrics(clusterName, appId string) ([]*core.ExecutorMetric, error) {
	doarr := make([]*ExecutorMetricDO, 0)
	err := d.db.Find(&doarr, &ExecutorMetricDO{ClusterName: clusterName, AppId: appId}).Error
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("查询作业%s/%s的executor指标出错", clusterName, appId))
	}

	result := make([]*core.ExecutorMetric, len(doarr))
	for i, do := range doarr {
		result[i] = &core.ExecutorMetric{
			ClusterName:         do.ClusterName,
			AppId:               do.AppId,
			ExecutorId:          do.ExecutorId,
			Cores:               do.Cores,
			MaxMemory:           do.MaxMemory,
			MemoryUsed:          do.MemoryUsed,
			TotalTasks:          do.TotalTasks,
			CompletedTasks:      do.CompletedTasks,
			TotalDurationMillis: do.TotalDurationMillis,
			TotalGCTimeMillis:   do.TotalGCTimeMillis,
		}
	}
	return result, nil
}

func (d *daoImpl) QueryRecommendations(clusterName, appId string) ([]*core.Recommendation, error) {
	doarr := make([]*RecommendationDO, 0)
	err := d.db.Order("version asc").
		Find(&doarr, &RecommendationDO{ClusterName: clusterName, AppId: appId}).Error
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("查询作业%s/%s的建议出错", clusterName, appId))
	}

	result := make([]*core.Recommendation, len(doarr))
	for i, do := range doarr {
		result[i] = recommendationFromDO(do)
	}
	return result, nil
}

func (d *daoImpl) QueryLatestRecommendation(clusterName, appId string) (*core.Recommendation, error) {
	do := &RecommendationDO{}
	err := d.db.Order("version desc").
		First(do, &RecommendationDO{ClusterName: clusterName, AppId: appId}).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("查询作业%s/%s的最新建议出错", clusterName, appId))
	}
	return recommendationFromDO(do), nil
}

func (d *daoImpl) QueryCustomSla() (map[string]config.CustomSlaEntry, error) {
	doarr := make([]*CustomSlaDO, 0)
	err := d.db.Find(&doarr).Error
	if err != nil {
		return nil, errors.Wrap(err, "查询自定义SLA表出错")
	}

	result := make(map[string]config.CustomSlaEntry, len(doarr))
	for _, do := range doarr {
		result[do.Identifier] = config.CustomSlaEntry{
			Category:        do.Category,
			ThresholdMillis: do.ThresholdMillis,
		}
	}
	return result, nil
}

func (d *daoImpl) DB() *gorm.DB {
	return d.db
}

func jobFromDO(do *JobDO) *core.Job {
	return &core.Job{
		ClusterName:    do.ClusterName,
		AppId:          do.AppId,
		User:           do.User,
		Name:           do.Name,
		Queue:          do.Queue,
		YarnState:      do.YarnState,
		FinalStatus:    do.FinalStatus,
		StartedTime:    do.StartedTime,
		FinishedTime:   do.FinishedTime,
		ElapsedMillis:  do.ElapsedMillis,
		MemorySeconds:  do.MemorySeconds,
		VcoreSeconds:   do.VcoreSeconds,
		State:          core.JobState(do.State),
		Category:       core.Category(do.Category),
		CategorySource: core.CategorySource(do.CategorySource),
		UtilStatus:     do.UtilStatus,
		AvgCpuCores:    do.AvgCpuCores,
		AvgMemoryMB:    do.AvgMemoryMB,
		Notes:          do.Notes,
	}
}

func recommendationFromDO(do *RecommendationDO) *core.Recommendation {
	return &core.Recommendation{
		ClusterName:      do.ClusterName,
		AppId:            do.AppId,
		Version:          do.Version,
		Category:         core.Category(do.Category),
		NumExecutors:     do.NumExecutors,
		ExecutorMemoryMB: do.ExecutorMemoryMB,
		ExecutorCores:    do.ExecutorCores,
		Source:           core.RecommendationSource(do.Source),
		Notes:            do.Notes,
	}
}
