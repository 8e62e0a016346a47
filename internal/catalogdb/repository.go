// Package catalogdb serves collections and plans straight from Postgres.
package catalogdb

import (
	"context"
	"database/sql"
	"fmt"

	"catalog-bff/internal/common/logger"
	"catalog-bff/internal/models"
	"catalog-bff/internal/tier"

	"github.com/lib/pq"
)

const (
	collectionsQuery = `SELECT id, title, description, thumbnail_url, price, tier FROM collections ORDER BY id`
	plansQuery       = `SELECT id, title, price, period, features, highlighted FROM subscription_plans ORDER BY id`
)

type Repository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "catalogdb"}),
	}
}

func (r *Repository) FetchCollections(ctx context.Context) ([]models.Collection, error) {
	rows, err := r.db.QueryContext(ctx, collectionsQuery)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	out := []models.Collection{}
	for rows.Next() {
		var (
			c                      models.Collection
			id, price, tierValue   sql.NullString
			description, thumbnail sql.NullString
		)
		if err := rows.Scan(&id, &c.Title, &description, &thumbnail, &price, &tierValue); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		c.ID = models.FlexString(id.String)
		c.Description = description.String
		c.ThumbnailURL = thumbnail.String
		c.Price = models.FlexString(price.String)
		c.Tier = tier.Parse(tierValue.String)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}

	if n := tier.CountUnknown(out); n > 0 {
		r.logger.Warn("Collections with unrecognised tier", map[string]interface{}{"count": n})
	}
	r.logger.Debug("Collections loaded", map[string]interface{}{"count": len(out)})
	return out, nil
}

// FetchPlans never reports an absent list; an empty table is an empty slice.
func (r *Repository) FetchPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	rows, err := r.db.QueryContext(ctx, plansQuery)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	out := []models.SubscriptionPlan{}
	for rows.Next() {
		var (
			p         models.SubscriptionPlan
			id, price sql.NullString
			period    sql.NullString
			features  pq.StringArray
		)
		if err := rows.Scan(&id, &p.Title, &price, &period, &features, &p.Highlighted); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		p.ID = models.FlexString(id.String)
		p.Price = models.FlexString(price.String)
		if period.Valid {
			v := period.String
			p.Period = &v
		}
		if len(features) > 0 {
			p.Features = []string(features)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return out, nil
}
