package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Notifier 把一段人类可读的摘要发送到通知渠道。发送失败不应使流水线失败，
// 由调用方记录日志即可。
type Notifier interface {
	Send(text string) error
}

type slackNotifier struct {
	webhookUrl string
	client     *http.Client
}

var _ Notifier = &slackNotifier{}

// NewSlackNotifier 构造基于incoming webhook的Slack通知器。url为空时返回nil，
// 调用方应跳过通知。
func NewSlackNotifier(webhookUrl string) Notifier {
	if webhookUrl == "" {
		return nil
	}
	return &slackNotifier{
		webhookUrl: webhookUrl,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *slackNotifier) Send(text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return errors.Wrap(err, "序列化Slack消息出错")
	}

	response, err := s.client.Post(s.webhookUrl, "application/json", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "发送Slack消息出错")
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack返回状态码%d", response.StatusCode)
	}
	return nil
}
