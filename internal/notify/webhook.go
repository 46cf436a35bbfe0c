// Package notify は出品者へのWebhook通知を提供する。
// 売上レポートの完成時に、出品者が登録したコールバックURLへ
// SSRF防止付きのHTTPクライアントでPOST通知を送信する。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/security"
)

// reportReadyPayload はレポート完成通知のボディ。
type reportReadyPayload struct {
	Event      string    `json:"event"`
	ReportID   string    `json:"report_id"`
	Status     string    `json:"status"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	OrderCount int       `json:"order_count"`
	Revenue    float64   `json:"revenue"`
}

// WebhookNotifier は出品者のWebhook URLへの通知クライアント。
// URLは送信前に静的検証し、実際の接続はsafeurlのDialer検証で保護する。
type WebhookNotifier struct {
	ssrfGuard   security.SSRFGuardService
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	retryBase   time.Duration
}

// NewWebhookNotifier はWebhookNotifierの新しいインスタンスを生成する。
func NewWebhookNotifier(
	ssrfGuard security.SSRFGuardService,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *WebhookNotifier {
	return &WebhookNotifier{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		retryBase:   defaultRetryBase,
	}
}

// NotifyReportReady はレポート完成通知を出品者のWebhook URLへ送信する。
// 2xx以外の応答はエラーとして扱う。
func (n *WebhookNotifier) NotifyReportReady(ctx context.Context, user *model.User, report *model.SalesReport) error {
	if user.WebhookURL == "" {
		return fmt.Errorf("Webhook URLが未登録です: user=%s", user.ID)
	}

	if err := n.ssrfGuard.ValidateURL(user.WebhookURL); err != nil {
		return fmt.Errorf("Webhook URLの検証に失敗: %w", err)
	}

	payload := reportReadyPayload{
		Event:      "sales_report.ready",
		ReportID:   report.ID,
		Status:     string(report.Status),
		From:       report.From,
		To:         report.To,
		OrderCount: report.Totals.OrderCount,
		Revenue:    report.Totals.Revenue,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("通知ボディの生成に失敗: %w", err)
	}

	// 一時的な失敗（408/429/5xx、接続エラー）は指数バックオフで再送する。
	var lastErr error
	for attempt := 0; attempt < maxDeliveryAttempts; attempt++ {
		if attempt > 0 {
			delay := CalculateRetryDelay(n.retryBase, attempt-1)
			n.logger.Warn("Webhook送信を再試行します",
				slog.String("report_id", report.ID),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		statusCode, err := n.send(ctx, user.WebhookURL, body)
		if err != nil {
			lastErr = err
			continue
		}

		switch ClassifyDeliveryStatus(statusCode) {
		case DeliveryOK:
			n.logger.Info("レポート完成通知を送信しました",
				slog.String("report_id", report.ID),
				slog.String("user_id", user.ID),
				slog.Int("http_status", statusCode),
			)
			return nil
		case DeliveryStop:
			return fmt.Errorf("Webhook応答が2xxではありません: %d", statusCode)
		case DeliveryRetry:
			lastErr = fmt.Errorf("Webhook応答が2xxではありません: %d", statusCode)
		}
	}

	return fmt.Errorf("Webhook送信が%d回失敗しました: %w", maxDeliveryAttempts, lastErr)
}

// send はWebhook URLへ1回のPOSTを行い、HTTPステータスコードを返す。
func (n *WebhookNotifier) send(ctx context.Context, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Ichiba/1.0 Webhook")

	client := n.ssrfGuard.NewSafeClient(n.timeout, n.maxBodySize)
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("Webhook送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	// 応答ボディは読み捨てる（コネクション再利用のため）
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, n.maxBodySize))

	return resp.StatusCode, nil
}
