package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// SparkExecutor 是history server返回的单个executor记录
type SparkExecutor struct {
	Id             string `json:"id"`
	HostPort       string `json:"hostPort"`
	TotalCores     int    `json:"totalCores"`
	MaxMemory      int64  `json:"maxMemory"`
	MemoryUsed     int64  `json:"memoryUsed"`
	TotalTasks     int    `json:"totalTasks"`
	CompletedTasks int    `json:"completedTasks"`
	TotalDuration  int64  `json:"totalDuration"`
	TotalGCTime    int64  `json:"totalGCTime"`
}

type SparkClient interface {
	ListExecutors(ctx context.Context, appId string) ([]SparkExecutor, error)
}

type httpSparkClient struct {
	baseUrl string
	client  *http.Client
	retry   RetryConfig
}

var _ SparkClient = &httpSparkClient{}

func NewSparkClient(baseUrl string, retry RetryConfig) SparkClient {
	return &httpSparkClient{
		baseUrl: strings.TrimRight(baseUrl, "/"),
		client:  &http.Client{Timeout: retry.Timeout},
		retry:   retry,
	}
}

func (h *httpSparkClient) ListExecutors(ctx context.Context, appId string) ([]SparkExecutor, error) {
	url := fmt.Sprintf("%s/api/v1/applications/%s/executors", h.baseUrl, appId)

	dest := make([]SparkExecutor, 0)
	err := getJSONWithRetry(ctx, h.client, url, h.retry, &dest)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("获取应用%s的executor列表出错", appId))
	}
	return dest, nil
}
