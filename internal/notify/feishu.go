package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "feishu")

// throttleTTL 相同内容的告警在此窗口内只发一次，避免告警风暴
const throttleTTL = 5 * time.Minute

// Feishu 飞书 webhook 告警通道
// 尽力而为：发送失败只记日志，绝不影响交易流程
type Feishu struct {
	webhook string
	client  *resty.Client

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewFeishu 创建飞书告警通道；webhook 为空时所有 Notify 都是空操作
func NewFeishu(webhook string) *Feishu {
	return &Feishu{
		webhook: webhook,
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(1),
		lastSent: make(map[string]time.Time),
	}
}

// Notify 发送一条文本告警（同步，尽力而为）
func (f *Feishu) Notify(message string) {
	if f.webhook == "" {
		return
	}
	if f.throttled(message) {
		log.Debugf("告警被节流: %s", message)
		return
	}

	body := map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": message},
	}
	resp, err := f.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(f.webhook)
	if err != nil {
		log.Errorf("飞书通知发送失败: %v", err)
		return
	}
	if resp.StatusCode() == http.StatusOK {
		log.Info("飞书通知发送成功")
	} else {
		log.Errorf("飞书通知发送失败: %s", resp.String())
	}
}

// throttled 检查并记录：窗口内重复内容返回 true
func (f *Feishu) throttled(message string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	if last, ok := f.lastSent[message]; ok && now.Sub(last) < throttleTTL {
		return true
	}
	// 顺手清理过期条目，map 不会无限增长
	for k, t := range f.lastSent {
		if now.Sub(t) >= throttleTTL {
			delete(f.lastSent, k)
		}
	}
	f.lastSent[message] = now
	return false
}
