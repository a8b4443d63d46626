package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
)

// YarnApplication 是ResourceManager返回的应用记录。
// ElapsedTime、MemorySeconds、VcoreSeconds与StartedTime使用指针以区分字段缺失与零值，
// 缺失任一必需字段的记录会被采集阶段单独跳过。
type YarnApplication struct {
	Id                     string  `json:"id"`
	User                   string  `json:"user"`
	Name                   string  `json:"name"`
	Queue                  string  `json:"queue"`
	State                  string  `json:"state"`
	FinalStatus            string  `json:"finalStatus"`
	StartedTime            *int64  `json:"startedTime"`
	FinishedTime           int64   `json:"finishedTime"`
	ElapsedTime            *int64  `json:"elapsedTime"`
	MemorySeconds          *int64  `json:"memorySeconds"`
	VcoreSeconds           *int64  `json:"vcoreSeconds"`
	QueueUsagePercentage   float64 `json:"queueUsagePercentage"`
	ClusterUsagePercentage float64 `json:"clusterUsagePercentage"`
}

type yarnAppsResponse struct {
	Apps struct {
		App []YarnApplication `json:"app"`
	} `json:"apps"`
}

type YarnClient interface {
	ListApplications(ctx context.Context, states []string, applicationTypes []string) ([]YarnApplication, error)
}

type httpYarnClient struct {
	baseUrl string
	client  *http.Client
	retry   RetryConfig
}

var _ YarnClient = &httpYarnClient{}

// RetryConfig 限定瞬时错误的重试行为。4xx等永久错误不会重试。
type RetryConfig struct {
	Timeout    time.Duration // 单次请求超时
	MaxElapsed time.Duration // 所有重试加起来的时间上限
}

func NewYarnClient(baseUrl string, retry RetryConfig) YarnClient {
	return &httpYarnClient{
		baseUrl: strings.TrimRight(baseUrl, "/"),
		client:  &http.Client{Timeout: retry.Timeout},
		retry:   retry,
	}
}

func (h *httpYarnClient) ListApplications(ctx context.Context, states []string, applicationTypes []string) ([]YarnApplication, error) {
	url := fmt.Sprintf("%s/ws/v1/cluster/apps", h.baseUrl)
	sep := "?"
	if len(states) > 0 {
		url += sep + "states=" + strings.Join(states, ",")
		sep = "&"
	}
	if len(applicationTypes) > 0 {
		url += sep + "applicationTypes=" + strings.Join(applicationTypes, ",")
	}

	dest := &yarnAppsResponse{}
	err := getJSONWithRetry(ctx, h.client, url, h.retry, dest)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("从%s获取应用列表出错", url))
	}
	return dest.Apps.App, nil
}

// getJSONWithRetry 请求url并反序列化到dest。超时与5xx会以指数退避重试，
// 4xx与无法解析的响应视为永久错误立即返回。
func getJSONWithRetry(ctx context.Context, client *http.Client, url string, retry RetryConfig, dest interface{}) error {
	operation := func() error {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req = req.WithContext(ctx)

		response, err := client.Do(req)
		if err != nil {
			// 网络错误与超时视为瞬时错误
			return err
		}
		defer func() { _ = response.Body.Close() }()

		if response.StatusCode >= 500 {
			return fmt.Errorf("服务端返回%d", response.StatusCode)
		}
		if response.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("请求被拒绝，状态码%d", response.StatusCode))
		}

		body, err := ioutil.ReadAll(response.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, dest); err != nil {
			return backoff.Permanent(errors.Wrap(err, "反序列化响应出错"))
		}
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = retry.MaxElapsed

	return backoff.Retry(operation, backoff.WithContext(expBackoff, ctx))
}
