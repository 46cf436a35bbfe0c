// Package model はドメインモデルを定義する。
package model

// User はマーケットプレイスの利用者を表す。
// 一般顧客とB2B事業者（出品者）の両方を含む。
// 注文と指値はリンクテーブル（user_orders, user_limits）で所有する。
type User struct {
	ID          string
	Name        string
	IsBusiness  bool
	CompanyName string
	B2BAPIKey   string
	WebhookURL  string
}

// SellerName はオファー上の出品者名を返す。
// 法人名があればそれを、なければユーザー名を使用する。
func (u *User) SellerName() string {
	if u.CompanyName != "" {
		return u.CompanyName
	}
	return u.Name
}
