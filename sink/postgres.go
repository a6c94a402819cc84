package sink

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hexelier/immoharvest/models"
)

const createListingsTable = `
CREATE TABLE IF NOT EXISTS listings (
	id            BIGSERIAL PRIMARY KEY,
	page          INT          NOT NULL,
	type          TEXT,
	price         TEXT,
	price_per_m2  TEXT,
	surface_m2    TEXT,
	rooms         TEXT,
	bedrooms      TEXT,
	delivery_date TEXT,
	address       TEXT,
	city          TEXT,
	postal_code   TEXT,
	department    TEXT,
	program_name  TEXT,
	url           TEXT UNIQUE,
	scraped_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
)`

const insertListing = `
INSERT INTO listings
	(page, type, price, price_per_m2, surface_m2, rooms, bedrooms,
	 delivery_date, address, city, postal_code, department, program_name, url)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (url) DO NOTHING`

// PostgresSink mirrors every batch into a single listings table. Re-scraped
// URLs are ignored on conflict so retried pages never duplicate rows.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects with the given DSN and ensures the table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSinkWrite, "failed to connect to postgres", err)
	}
	if _, err := pool.Exec(ctx, createListingsTable); err != nil {
		pool.Close()
		return nil, models.NewScrapeError(models.ErrCodeSinkWrite, "failed to ensure listings table", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Append inserts the page's listings in one batch round-trip.
func (s *PostgresSink) Append(ctx context.Context, page int, listings []models.Listing) error {
	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(insertListing,
			page,
			nullable(l.Type),
			nullable(l.Price),
			nullable(l.PricePerM2),
			nullable(l.Surface),
			nullable(l.Rooms),
			nullable(l.Bedrooms),
			nullable(l.DeliveryDate),
			nullable(l.Address),
			nullable(l.City),
			nullable(l.PostalCode),
			nullable(l.Department),
			nullable(l.ProgramName),
			nullable(l.URL),
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return models.NewScrapeError(models.ErrCodeSinkWrite, "failed to insert listings", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

// nullable maps absent fields to SQL NULL instead of empty strings.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
