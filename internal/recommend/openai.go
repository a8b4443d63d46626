package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/packagewjx/spark-resource-advisor/pkg/core"
	"github.com/pkg/errors"
)

const chatCompletionPath = "/v1/chat/completions"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIProvider 调用OpenAI的chat completion接口获取配置建议。
// 模型的回复视为不可信输入，解析尽量宽松，范围约束由引擎负责。
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseUrl string
	client  *http.Client
}

var _ SuggestionProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, model, baseUrl string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseUrl: strings.TrimRight(baseUrl, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OpenAIProvider) Suggest(ctx context.Context, job *core.Job, avg core.JobAverages) (*core.SizingSuggestion, error) {
	payload := &chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an expert Spark performance engineer."},
			{Role: "user", Content: buildPrompt(job, avg)},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "序列化请求出错")
	}

	req, err := http.NewRequest(http.MethodPost, p.baseUrl+chatCompletionPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	response, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "请求模型接口出错")
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("模型接口返回%d", response.StatusCode)
	}

	respBody, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, "读取模型响应出错")
	}
	dest := &chatCompletionResponse{}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return nil, errors.Wrap(err, "反序列化模型响应出错")
	}
	if len(dest.Choices) == 0 {
		return nil, fmt.Errorf("模型没有返回任何结果")
	}

	return ParseSuggestion(dest.Choices[0].Message.Content)
}

func buildPrompt(job *core.Job, avg core.JobAverages) string {
	return fmt.Sprintf(
		"We have a Spark job named %s. It is categorised as %s based on its SLA. "+
			"The average CPU usage is %.2f vcores and average memory usage is %.2f MB. "+
			"It ran with %d executors, each consuming on average %.2f core-seconds and %.2f MB-seconds. "+
			"The utilisation status is %s. "+
			"Suggest the number of executors, cores per executor, and memory per executor (in MB). "+
			"Keep the response succinct and in the format: 'executors=<num>, cores=<num>, memory=<num>MB' "+
			"followed by a brief note explaining the reasoning.",
		job.Name, job.Category, job.AvgCpuCores, job.AvgMemoryMB,
		avg.NumExecutors, avg.AvgCpuSeconds, avg.AvgMemSeconds, job.UtilStatus)
}

var numberPattern = regexp.MustCompile(`-?\d+\.?\d*`)

// ParseSuggestion 宽松地解析模型回复：依次取出前三个数字作为
// executor数、核数与内存(MB)，缺失的字段留空。完全没有数字时判定为不可用。
func ParseSuggestion(message string) (*core.SizingSuggestion, error) {
	matches := numberPattern.FindAllString(message, 3)
	if len(matches) == 0 {
		return nil, fmt.Errorf("无法从模型回复中解析出任何数字：%s", message)
	}

	suggestion := &core.SizingSuggestion{RawText: message}
	fields := []**int{&suggestion.NumExecutors, &suggestion.ExecutorCores, &suggestion.ExecutorMemoryMB}
	for i, match := range matches {
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			continue
		}
		v := int(math.Round(f))
		*fields[i] = &v
	}

	return suggestion, nil
}
