package notify

import "time"

// DeliveryResult はHTTPステータスコードに基づくWebhook配送結果の分類。
type DeliveryResult int

const (
	// DeliveryOK は配送成功（2xx）。
	DeliveryOK DeliveryResult = iota
	// DeliveryStop は再送しても成功しないステータス（2xx/408/429/5xx以外）。
	DeliveryStop
	// DeliveryRetry はバックオフ後に再送するステータス（408/429/5xx）。
	DeliveryRetry
)

const (
	// maxDeliveryAttempts はWebhook配送の最大試行回数。
	maxDeliveryAttempts = 3
	// defaultRetryBase は指数バックオフの初回遅延。
	defaultRetryBase = time.Second
	// maxRetryDelay は指数バックオフの最大遅延。
	maxRetryDelay = 30 * time.Second
)

// ClassifyDeliveryStatus はHTTPステータスコードを配送結果に分類する。
func ClassifyDeliveryStatus(statusCode int) DeliveryResult {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return DeliveryOK
	case statusCode == 408 || statusCode == 429:
		return DeliveryRetry
	case statusCode >= 500:
		return DeliveryRetry
	default:
		return DeliveryStop
	}
}

// CalculateRetryDelay は試行回数に基づいて指数バックオフ遅延を計算する。
// base、2倍ずつ増加、最大maxRetryDelay。
func CalculateRetryDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
