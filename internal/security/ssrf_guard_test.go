package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSafeClient はWebhook通知用クライアントの生成をテストする。
func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(10*time.Second, 64*1024)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
}

// TestNewSafeClientTimeout は通知タイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 10 * time.Second
	client := guard.NewSafeClient(timeout, 64*1024)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はSafeClientにカスタムTransportが設定されていることをテストする。
// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewSafeClientHasTransport(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(10*time.Second, 64*1024)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewSafeClientBlocksLoopback はループバックで待ち受けるWebhook先への
// 送信がDialerレベルでブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second, 64*1024)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_WebhookRegistration は管理APIのユーザー登録時に
// 出品者のWebhook URLがどう検証されるかを網羅的にテストする。
// 社内ネットワークやクラウドメタデータを指すコールバックURLの登録を拒否する。
func TestValidateURL_WebhookRegistration(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		// 受理される出品者のコールバックURL
		{"パートナーERPの受信エンドポイント", "https://erp.tanaka-shoji.example/hooks/sales-report", true},
		{"SaaSの受信URL（パス・クエリ付き)", "https://hooks.saas.example/v1/deliver?tenant=ichiba", true},
		{"平文HTTPの公開ホスト", "http://legacy.partner.example/webhook", true},
		{"ポート指定付きの公開ホスト", "https://partner.example:443/hooks", true},

		// 拒否されるURL
		{"localhostの管理コンソール", "http://localhost/admin", false},
		{"ループバックIPの内部API", "http://127.0.0.1:8080/api/admin/overview", false},
		{"ループバック帯の別アドレス", "http://127.10.0.1/hook", false},
		{"社内ネットワーク(10/8)", "http://10.0.5.20/internal/hooks", false},
		{"社内ネットワーク(172.16/12)", "http://172.16.0.1/hook", false},
		{"社内ネットワーク(192.168/16)", "http://192.168.1.100/nas/hook", false},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/", false},
		{"リンクローカル帯", "http://169.254.0.10/hook", false},
		{"ゼロアドレス", "http://0.0.0.0/hook", false},
		{"IPv6ループバック", "http://[::1]/hook", false},
		{"IPv6ユニークローカル", "http://[fc00::1]/hook", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if tt.ok && err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", tt.url, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("ValidateURL(%q) should have been rejected", tt.url)
			}
		})
	}
}

// TestValidateURL_MalformedOrNonHTTP は不正な形式やhttp/https以外の
// スキームのWebhook URLが拒否されることをテストする。
func TestValidateURL_MalformedOrNonHTTP(t *testing.T) {
	guard := NewSSRFGuard()

	invalidURLs := []string{
		"",
		"not-a-url",
		"ftp://partner.example/hook",
		"file:///etc/passwd",
		"gopher://partner.example",
		"javascript:alert(1)",
		"https://",
	}

	for _, u := range invalidURLs {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", u)
			}
		})
	}
}

// TestSSRFGuardInterface はSSRFGuardがインターフェースを正しく実装していることをテストする。
func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
