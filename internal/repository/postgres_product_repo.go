package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// FindByID は指定IDの商品を取得する（オファー未ロード）。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	product := &model.Product{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM products WHERE id = $1`, id,
	).Scan(&product.ID, &product.Name, &product.Description)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	return product, nil
}

// FindByIDWithOffers は指定IDの商品をオファー付きで取得する。見つからない場合はnilを返す。
// オファーはproduct_offersリンク経由でロードし、ID順で返す。
func (r *PostgresProductRepo) FindByIDWithOffers(ctx context.Context, id string) (*model.Product, error) {
	product, err := r.FindByID(ctx, id)
	if err != nil || product == nil {
		return product, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT o.id, o.seller, o.price
		 FROM offers o
		 JOIN product_offers po ON po.offer_id = o.id
		 WHERE po.product_id = $1
		 ORDER BY o.id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("商品オファーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		offer := &model.Offer{}
		if err := rows.Scan(&offer.ID, &offer.Seller, &offer.Price); err != nil {
			return nil, fmt.Errorf("オファー行の読み取りに失敗しました: %w", err)
		}
		product.Offers = append(product.Offers, offer)
	}
	return product, rows.Err()
}

// List は全商品を名前順で返す（オファー未ロード）。
func (r *PostgresProductRepo) List(ctx context.Context) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM products ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		product := &model.Product{}
		if err := rows.Scan(&product.ID, &product.Name, &product.Description); err != nil {
			return nil, fmt.Errorf("商品行の読み取りに失敗しました: %w", err)
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// Create は商品とカテゴリ紐付けを作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description) VALUES ($1, $2, $3)`,
		product.ID, product.Name, product.Description,
	)
	if err != nil {
		return fmt.Errorf("商品の作成に失敗しました: %w", err)
	}

	for _, catID := range product.CategoryIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)`,
			product.ID, catID,
		)
		if err != nil {
			return fmt.Errorf("商品カテゴリの紐付けに失敗しました: %w", err)
		}
	}
	return nil
}

// Update は商品の名前・説明を更新する。
func (r *PostgresProductRepo) Update(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = $2, description = $3 WHERE id = $1`,
		product.ID, product.Name, product.Description,
	)
	if err != nil {
		return fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの商品を削除する。紐付けはCASCADE削除される。
func (r *PostgresProductRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}
	return nil
}

// AttachOffer は商品のオファーリストにオファーIDを追加する。
func (r *PostgresProductRepo) AttachOffer(ctx context.Context, productID, offerID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO product_offers (product_id, offer_id) VALUES ($1, $2)`,
		productID, offerID,
	)
	if err != nil {
		return fmt.Errorf("商品へのオファー追加に失敗しました: %w", err)
	}
	return nil
}

// DetachOffer は商品のオファーリストからオファーIDを外す。
func (r *PostgresProductRepo) DetachOffer(ctx context.Context, productID, offerID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM product_offers WHERE product_id = $1 AND offer_id = $2`,
		productID, offerID,
	)
	if err != nil {
		return fmt.Errorf("商品からのオファー削除に失敗しました: %w", err)
	}
	return nil
}

// MapByOfferIDs はオファーID→所属商品の対応を返す。
func (r *PostgresProductRepo) MapByOfferIDs(ctx context.Context, offerIDs []string) (map[string]ProductRef, error) {
	result := make(map[string]ProductRef)
	if len(offerIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT po.offer_id, p.id, p.name
		 FROM product_offers po
		 JOIN products p ON p.id = po.product_id
		 WHERE po.offer_id = ANY($1)`,
		pq.Array(offerIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("オファー所属商品の検索に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var offerID string
		var ref ProductRef
		if err := rows.Scan(&offerID, &ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("商品参照行の読み取りに失敗しました: %w", err)
		}
		result[offerID] = ref
	}
	return result, rows.Err()
}
