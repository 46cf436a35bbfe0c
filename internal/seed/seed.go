// Package seed はデモデータの投入を実装する。
// 埋め込みJSONから決定的なデモデータを読み込み、データベースに投入する。
package seed

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
)

//go:embed data/*.json
var dataFS embed.FS

type seedCategory struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type seedOffer struct {
	ID     string  `json:"id"`
	Seller string  `json:"seller"`
	Price  float64 `json:"price"`
}

type seedProduct struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CategoryIDs []int    `json:"categoryIds"`
	OfferIDs    []string `json:"offerIds"`
}

type seedUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsBusiness  bool   `json:"isBusiness"`
	CompanyName string `json:"companyName"`
	B2BAPIKey   string `json:"b2bApiKey"`
	WebhookURL  string `json:"webhookUrl"`
}

// seedData は埋め込みJSONから読み込んだデモデータ一式。
type seedData struct {
	Categories []seedCategory
	Offers     []seedOffer
	Products   []seedProduct
	Users      []seedUser
}

// loadSeedData は埋め込みJSONをパースしてデモデータを返す。
func loadSeedData() (*seedData, error) {
	var data seedData

	files := []struct {
		name string
		dst  interface{}
	}{
		{"data/categories.json", &data.Categories},
		{"data/offers.json", &data.Offers},
		{"data/products.json", &data.Products},
		{"data/users.json", &data.Users},
	}

	for _, f := range files {
		raw, err := dataFS.ReadFile(f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
	}

	return &data, nil
}

// Seeder はデモデータの投入を行う。
type Seeder struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSeeder はSeederを生成する。
func NewSeeder(db *sql.DB, logger *slog.Logger) *Seeder {
	return &Seeder{db: db, logger: logger}
}

// Run はデモデータを投入する。
// resetがtrueの場合は既存データをすべて消去してから投入する。
// falseの場合は各テーブルが空のときに限り投入する（開発中の再起動でデータを失わないため）。
func (s *Seeder) Run(ctx context.Context, reset bool) error {
	data, err := loadSeedData()
	if err != nil {
		return err
	}

	if reset {
		s.logger.Info("resetting database before seeding")
		if err := s.wipeAll(ctx); err != nil {
			return err
		}
		return s.insertAll(ctx, data)
	}

	// 空のテーブルに限り投入する
	if empty, err := s.tableEmpty(ctx, "categories"); err != nil {
		return err
	} else if empty {
		if err := s.insertCategories(ctx, data.Categories); err != nil {
			return err
		}
	}
	if empty, err := s.tableEmpty(ctx, "offers"); err != nil {
		return err
	} else if empty {
		if err := s.insertOffers(ctx, data.Offers); err != nil {
			return err
		}
	}
	if empty, err := s.tableEmpty(ctx, "products"); err != nil {
		return err
	} else if empty {
		if err := s.insertProducts(ctx, data.Products); err != nil {
			return err
		}
	}
	if empty, err := s.tableEmpty(ctx, "users"); err != nil {
		return err
	} else if empty {
		if err := s.insertUsers(ctx, data.Users); err != nil {
			return err
		}
	}

	return nil
}

// wipeAll は全テーブルのデータを消去する。
// 外部キー制約の依存順に親テーブルを後から消す。リンクテーブルはCASCADEで消える。
func (s *Seeder) wipeAll(ctx context.Context) error {
	tables := []string{
		"offer_sync_batches",
		"sales_reports",
		"limits",
		"orders",
		"offers",
		"products",
		"categories",
		"users",
	}

	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", table, err)
		}
	}

	return nil
}

func (s *Seeder) insertAll(ctx context.Context, data *seedData) error {
	if err := s.insertCategories(ctx, data.Categories); err != nil {
		return err
	}
	if err := s.insertOffers(ctx, data.Offers); err != nil {
		return err
	}
	if err := s.insertProducts(ctx, data.Products); err != nil {
		return err
	}
	return s.insertUsers(ctx, data.Users)
}

func (s *Seeder) insertCategories(ctx context.Context, categories []seedCategory) error {
	for _, c := range categories {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO categories (id, name, description) VALUES ($1, $2, $3)`,
			c.ID, c.Name, c.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert category %d: %w", c.ID, err)
		}
	}
	s.logger.Info("seeded categories", slog.Int("count", len(categories)))
	return nil
}

func (s *Seeder) insertOffers(ctx context.Context, offers []seedOffer) error {
	for _, o := range offers {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO offers (id, seller, price) VALUES ($1, $2, $3)`,
			o.ID, o.Seller, o.Price,
		)
		if err != nil {
			return fmt.Errorf("failed to insert offer %s: %w", o.ID, err)
		}
	}
	s.logger.Info("seeded offers", slog.Int("count", len(offers)))
	return nil
}

func (s *Seeder) insertProducts(ctx context.Context, products []seedProduct) error {
	for _, p := range products {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO products (id, name, description) VALUES ($1, $2, $3)`,
			p.ID, p.Name, p.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert product %s: %w", p.ID, err)
		}
		for _, categoryID := range p.CategoryIDs {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)`,
				p.ID, categoryID,
			)
			if err != nil {
				return fmt.Errorf("failed to link product %s to category %d: %w", p.ID, categoryID, err)
			}
		}
		for _, offerID := range p.OfferIDs {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO product_offers (product_id, offer_id) VALUES ($1, $2)`,
				p.ID, offerID,
			)
			if err != nil {
				return fmt.Errorf("failed to link product %s to offer %s: %w", p.ID, offerID, err)
			}
		}
	}
	s.logger.Info("seeded products", slog.Int("count", len(products)))
	return nil
}

func (s *Seeder) insertUsers(ctx context.Context, users []seedUser) error {
	for _, u := range users {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO users (id, name, is_business, company_name, b2b_api_key, webhook_url)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			u.ID, u.Name, u.IsBusiness, u.CompanyName, u.B2BAPIKey, u.WebhookURL,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user %s: %w", u.ID, err)
		}
	}
	s.logger.Info("seeded users", slog.Int("count", len(users)))
	return nil
}

func (s *Seeder) tableEmpty(ctx context.Context, table string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count == 0, nil
}
