// Package model はドメインモデルを定義する。
package model

// Category は商品カテゴリを表す。IDは数値（シードデータ互換）。
type Category struct {
	ID          int
	Name        string
	Description string
}

// Offer は出品者による商品の固定価格出品を表す。
// 商品への紐付けはProduct側のoffersリンクで管理する。
type Offer struct {
	ID     string
	Seller string
	Price  float64
}

// Product はカタログ上の商品を表す。
// Offersは取得方法によっては未ロードのことがある。
type Product struct {
	ID          string
	Name        string
	Description string
	CategoryIDs []int
	Offers      []*Offer
}
