package analyzer

import (
	"fmt"
	"testing"

	"github.com/packagewjx/spark-resource-advisor/internal/config"
	"github.com/packagewjx/spark-resource-advisor/internal/store"
	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestCategorizeThresholds(t *testing.T) {
	cases := []struct {
		elapsedMillis int64
		expect        core.Category
	}{
		{1, core.CategoryHourly},
		{HourlyThresholdMillis, core.CategoryHourly},
		{HourlyThresholdMillis + 1, core.CategoryTwoHours},
		{TwoHoursThresholdMillis, core.CategoryTwoHours},
		{TwoHoursThresholdMillis + 1, core.CategoryDaily},
		{DailyThresholdMillis, core.CategoryDaily},
		{DailyThresholdMillis + 1, core.CategoryWeekly},
		{WeeklyThresholdMillis, core.CategoryWeekly},
		{WeeklyThresholdMillis + 1, core.CategoryMonthly},
		{MonthlyThresholdMillis, core.CategoryMonthly},
		// 超过30天的作业同样归为monthly
		{MonthlyThresholdMillis + 1, core.CategoryMonthly},
		{MonthlyThresholdMillis * 100, core.CategoryMonthly},
	}

	for _, c := range cases {
		category, source := Categorize(c.elapsedMillis, "app-1", "job-1", nil)
		assert.Equal(t, c.expect, category, fmt.Sprintf("elapsedMillis=%d", c.elapsedMillis))
		assert.Equal(t, core.CategorySourceComputed, source)
	}
}

func TestCategorizeCustomSla(t *testing.T) {
	customSla := map[string]config.CustomSlaEntry{
		"application_1_0001": {Category: "weekly"},
		"daily-etl":          {Category: "daily"},
		"gold-pipeline":      {Category: "business-critical"},
	}

	/*
		按应用ID匹配
	*/
	category, source := Categorize(1000, "application_1_0001", "other-name", customSla)
	assert.Equal(t, core.Category("weekly"), category)
	assert.Equal(t, core.CategorySourceCustom, source)

	/*
		按名称匹配
	*/
	category, source = Categorize(1000, "application_1_0002", "daily-etl", customSla)
	assert.Equal(t, core.Category("daily"), category)
	assert.Equal(t, core.CategorySourceCustom, source)

	/*
		应用ID与名称同时命中时应用ID优先
	*/
	category, _ = Categorize(1000, "application_1_0001", "daily-etl", customSla)
	assert.Equal(t, core.Category("weekly"), category)

	/*
		自定义类别原样采用，不要求是内置类别
	*/
	category, source = Categorize(1000, "application_1_0003", "gold-pipeline", customSla)
	assert.Equal(t, core.Category("business-critical"), category)
	assert.Equal(t, core.CategorySourceCustom, source)

	/*
		都不命中时按时长计算
	*/
	category, source = Categorize(1000, "application_1_0004", "no-match", customSla)
	assert.Equal(t, core.CategoryHourly, category)
	assert.Equal(t, core.CategorySourceComputed, source)
}

func TestCategorizeDeterministic(t *testing.T) {
	customSla := map[string]config.CustomSlaEntry{"app-x": {Category: "daily"}}
	for i := 0; i < 100; i++ {
		category, source := Categorize(HourlyThresholdMillis+1, "app-1", "job-1", customSla)
		assert.Equal(t, core.CategoryTwoHours, category)
		assert.Equal(t, core.CategorySourceComputed, source)
	}
}

func TestUtilisation(t *testing.T) {
	status, _ := Utilisation(1, 1024)
	assert.Equal(t, core.UtilNormal, status)

	status, notes := Utilisation(10, 1024)
	assert.Equal(t, core.UtilOverutilised, status)
	assert.NotEmpty(t, notes)

	status, _ = Utilisation(1, 100000)
	assert.Equal(t, core.UtilOverutilised, status)

	status, _ = Utilisation(0.01, 1024)
	assert.Equal(t, core.UtilUnderutilised, status)

	status, _ = Utilisation(1, 100)
	assert.Equal(t, core.UtilUnderutilised, status)
}

func seedJobs(t *testing.T, dao store.Dao) {
	jobs := []*core.Job{
		{
			ClusterName:   "test",
			AppId:         "application_1_0001",
			Name:          "short-job",
			ElapsedMillis: 30 * 60 * 1000,
			MemorySeconds: 1843200, // 1024MB * 1800s
			VcoreSeconds:  3600,    // 2核 * 1800s
		},
		{
			ClusterName:   "test",
			AppId:         "application_1_0002",
			Name:          "long-job",
			ElapsedMillis: 3 * 60 * 60 * 1000,
		},
		{
			ClusterName: "test",
			AppId:       "application_1_0003",
			Name:        "no-elapsed",
		},
	}
	err := dao.SaveClusterJobs("test", jobs, nil)
	if !assert.NoError(t, err) {
		assert.FailNow(t, "写入测试作业出错")
	}
}

func TestAnalyzerRun(t *testing.T) {
	dao := store.NewMemoryDao()
	seedJobs(t, dao)

	summary, err := New(dao, nil).Run()
	assert.NoError(t, err)
	assert.Equal(t, 2, summary.Analysed)
	assert.Equal(t, 1, summary.Skipped)

	jobs, err := dao.QueryJobsByMinState(core.StateAnalysed)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(jobs))

	byId := map[string]*core.Job{}
	for _, job := range jobs {
		byId[job.AppId] = job
	}

	short := byId["application_1_0001"]
	assert.Equal(t, core.CategoryHourly, short.Category)
	assert.Equal(t, core.CategorySourceComputed, short.CategorySource)
	assert.InDelta(t, 2, short.AvgCpuCores, 1e-9)
	assert.InDelta(t, 1024, short.AvgMemoryMB, 1e-9)
	assert.Equal(t, core.StateAnalysed, short.State)

	long := byId["application_1_0002"]
	assert.Equal(t, core.CategoryDaily, long.Category)

	/*
		重复执行结果一致，状态不回退
	*/
	if err := dao.AdvanceJobState("test", "application_1_0001", core.StateRecommended); !assert.NoError(t, err) {
		assert.FailNow(t, "推进状态出错")
	}
	_, err = New(dao, nil).Run()
	assert.NoError(t, err)

	jobs, _ = dao.QueryJobsByMinState(core.StateNew)
	for _, job := range jobs {
		byId[job.AppId] = job
	}
	assert.Equal(t, core.StateRecommended, byId["application_1_0001"].State)
	assert.Equal(t, core.CategoryHourly, byId["application_1_0001"].Category)
}

func TestAnalyzerRunWithCustomSla(t *testing.T) {
	dao := store.NewMemoryDao()
	seedJobs(t, dao)

	customSla := map[string]config.CustomSlaEntry{"long-job": {Category: "weekly"}}
	_, err := New(dao, customSla).Run()
	assert.NoError(t, err)

	jobs, _ := dao.QueryJobsByMinState(core.StateAnalysed)
	for _, job := range jobs {
		if job.AppId == "application_1_0002" {
			assert.Equal(t, core.Category("weekly"), job.Category)
			assert.Equal(t, core.CategorySourceCustom, job.CategorySource)
		}
	}
}
