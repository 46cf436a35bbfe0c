// Package repository はデータ永続化のインターフェースを定義する。
//
// すべての書き込みは1文のSQLで行う。元の永続化層（ドキュメントストア）は
// 複数ドキュメントにまたがるトランザクションを提供しないため、その
// 単一ドキュメント原子性の規律をそのまま再現する。状態遷移の競合は
// statusを条件に含む条件付きUPDATEの行数で検出する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByB2BKey はB2B APIキーで事業者ユーザーを検索する。見つからない場合はnilを返す。
	FindByB2BKey(ctx context.Context, key string) (*model.User, error)

	// FindByLimitID は指値の所有者ユーザーを検索する。見つからない場合はnilを返す。
	FindByLimitID(ctx context.Context, limitID string) (*model.User, error)

	// List は全ユーザーを名前順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error

	// AppendOrder はユーザーの注文リストに注文IDを1文のINSERTで追加する。
	AppendOrder(ctx context.Context, userID, orderID string) error

	// AppendLimit はユーザーの指値リストに指値IDを1文のINSERTで追加する。
	AppendLimit(ctx context.Context, userID, limitID string) error
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	// List は全カテゴリをID順で返す。
	List(ctx context.Context) ([]*model.Category, error)

	// Create はカテゴリを作成する。
	Create(ctx context.Context, cat *model.Category) error

	// DeleteByID は指定IDのカテゴリを削除する。
	DeleteByID(ctx context.Context, id int) error
}

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する（オファー未ロード）。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// FindByIDWithOffers は指定IDの商品をオファー付きで取得する。見つからない場合はnilを返す。
	FindByIDWithOffers(ctx context.Context, id string) (*model.Product, error)

	// List は全商品を名前順で返す（オファー未ロード）。
	List(ctx context.Context) ([]*model.Product, error)

	// Create は商品とカテゴリ紐付けを作成する。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品の名前・説明を更新する。
	Update(ctx context.Context, product *model.Product) error

	// DeleteByID は指定IDの商品を削除する。
	DeleteByID(ctx context.Context, id string) error

	// AttachOffer は商品のオファーリストにオファーIDを追加する。
	AttachOffer(ctx context.Context, productID, offerID string) error

	// DetachOffer は商品のオファーリストからオファーIDを外す。
	DetachOffer(ctx context.Context, productID, offerID string) error

	// MapByOfferIDs はオファーID→所属商品の対応を返す。
	// 売上レポートのオファー→商品解決に使用する。
	MapByOfferIDs(ctx context.Context, offerIDs []string) (map[string]ProductRef, error)
}

// ProductRef は商品の参照情報（IDと名前のみ）。
type ProductRef struct {
	ID   string
	Name string
}

// OfferRepository はオファーデータの永続化インターフェース。
type OfferRepository interface {
	// FindByID は指定IDのオファーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Offer, error)

	// Create はオファーを作成する。
	Create(ctx context.Context, offer *model.Offer) error

	// Update はオファーの価格・出品者を更新する。
	Update(ctx context.Context, offer *model.Offer) error

	// DeleteByID は指定IDのオファーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// OrderWithOffer は注文と対応するオファーを結合した構造体。
// 売上レポートの集計に使用する。
type OrderWithOffer struct {
	Order model.Order
	Offer model.Offer
}

// OrderRepository は注文データの永続化インターフェース。
type OrderRepository interface {
	// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Order, error)

	// Create は注文を作成する。
	Create(ctx context.Context, order *model.Order) error

	// MarkCanceled は注文をpendingからcanceledへ条件付きUPDATEで遷移させる。
	// すでにpendingでない場合はfalseを返す。
	MarkCanceled(ctx context.Context, id string) (bool, error)

	// ListWithOfferBetween は作成日時が[from, to]の注文をオファー付きで返す。
	ListWithOfferBetween(ctx context.Context, from, to time.Time) ([]OrderWithOffer, error)
}

// LimitRepository は指値注文データの永続化インターフェース。
// 状態遷移の書き込みはすべてstatus条件付きの1文UPDATEで行い、
// 並行キャンセルや多重スイープとの競合を行数で検出する。
type LimitRepository interface {
	// FindByID は指定IDの指値を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Limit, error)

	// Create は指値を作成する。
	Create(ctx context.Context, limit *model.Limit) error

	// List は全指値を返す（管理画面用）。
	List(ctx context.Context, max int) ([]*model.Limit, error)

	// ListPending はpending状態の指値をID順（安定だが意味を持たない順序）で返す。
	ListPending(ctx context.Context) ([]*model.Limit, error)

	// ExpireOverdue はvalid_tillがnowより過去のpending指値を一括で
	// expiredに遷移させ、対象件数を返す。1文のUPDATEで実行する。
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)

	// MarkFulfilled はpendingの指値をfulfilledに遷移させ、注文IDを紐付ける。
	// 読み取り後に状態が変わっていた場合（すでにpendingでない場合）は
	// 何も書かずfalseを返す。マッチ確定直前の状態再確認はこの1文に集約される。
	MarkFulfilled(ctx context.Context, id, orderID string, now time.Time) (bool, error)

	// MarkCanceled はpendingの指値をcanceledに遷移させる。
	// すでにpendingでない場合はfalseを返す。
	MarkCanceled(ctx context.Context, id string, now time.Time) (bool, error)
}

// BatchRepository はオファー同期バッチの永続化インターフェース。
type BatchRepository interface {
	// Create はバッチを行データ付きで作成する。
	Create(ctx context.Context, batch *model.OfferSyncBatch) error

	// FindByID は指定IDのバッチを行データ付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.OfferSyncBatch, error)

	// FindByIdempotencyKey は出品者とべき等キーでバッチを検索する。見つからない場合はnilを返す。
	FindByIdempotencyKey(ctx context.Context, sellerUserID, key string) (*model.OfferSyncBatch, error)

	// ListBySeller は出品者のバッチを新しい順に最大max件返す（行データなし）。
	ListBySeller(ctx context.Context, sellerUserID string, max int) ([]*model.OfferSyncBatch, error)

	// NextAccepted は最も古いACCEPTEDバッチを行データ付きで返す。なければnilを返す。
	NextAccepted(ctx context.Context) (*model.OfferSyncBatch, error)

	// MarkProcessing はACCEPTEDのバッチをPROCESSINGに条件付きUPDATEで遷移させる。
	// すでにACCEPTEDでない場合はfalseを返す（二重処理防止）。
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// Finish はバッチの最終状態と行ごとの処理結果を保存する。
	Finish(ctx context.Context, batch *model.OfferSyncBatch) error
}

// ReportRepository は売上レポートの永続化インターフェース。
type ReportRepository interface {
	// Create はレポート要求を作成する。
	Create(ctx context.Context, report *model.SalesReport) error

	// FindByID は指定IDのレポートを行データ付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.SalesReport, error)

	// FindByIdempotencyKey は出品者とべき等キーでレポートを検索する。見つからない場合はnilを返す。
	FindByIdempotencyKey(ctx context.Context, sellerUserID, key string) (*model.SalesReport, error)

	// NextQueued は最も古いQUEUEDレポートを返す（行データなし）。なければnilを返す。
	NextQueued(ctx context.Context) (*model.SalesReport, error)

	// MarkRunning はQUEUEDのレポートをRUNNINGに条件付きUPDATEで遷移させる。
	// すでにQUEUEDでない場合はfalseを返す（二重処理防止）。
	MarkRunning(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// SaveResult は生成結果（行・集計）を保存しREADYに遷移させる。
	SaveResult(ctx context.Context, report *model.SalesReport) error

	// MarkFailed はレポートをFAILEDに遷移させ、メッセージを記録する。
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error

	// MarkReceived はWebhook通知の到達日時を記録する。
	MarkReceived(ctx context.Context, id string, receivedAt time.Time) error
}

// StatsRepository は管理画面向けの集計インターフェース。
type StatsRepository interface {
	// Overview は各エンティティの件数サマリを返す。
	Overview(ctx context.Context) (*Overview, error)
}

// Overview はエンティティ件数のサマリ。
type Overview struct {
	Users         int
	BusinessUsers int
	Categories    int
	Products      int
	Offers        int
	Orders        int
	Limits        int
}
