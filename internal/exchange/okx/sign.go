package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// isoTimestamp 返回 OKX 要求的 UTC 毫秒时间戳，例如 2020-12-08T09:08:57.715Z
func isoTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// sign 计算 OK-ACCESS-SIGN
// prehash = timestamp + method + requestPath(含查询串) + body
func sign(secret, timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
