package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sandesh333-sw/Unyt/internal/domain"
	"github.com/sandesh333-sw/Unyt/internal/repository"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
)

// ListingRepository implements repository.ListingRepository using PostgreSQL.
type ListingRepository struct {
	db DB
}

// NewListingRepository creates a new PostgreSQL-backed listing repository.
func NewListingRepository(db DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create inserts a new listing into the database.
func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	imagesJSON, err := json.Marshal(l.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	attrs := l.Attributes
	if attrs == nil {
		attrs = json.RawMessage("{}")
	}

	query := `
		INSERT INTO listings (id, account_id, type, title, slug, description, price_pence, images, attributes, boost_factor, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.db.Exec(ctx, query,
		l.ID,
		l.AccountID,
		l.Type,
		l.Title,
		l.Slug,
		l.Description,
		l.PricePence,
		imagesJSON,
		attrs,
		l.BoostFactor,
		l.Priority,
		l.Status,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}

	return nil
}

// GetByID retrieves a listing by its ID.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	query := listingSelect + ` WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	l, err := scanListingRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	return l, nil
}

// Update modifies an existing listing.
func (r *ListingRepository) Update(ctx context.Context, l *domain.Listing) error {
	l.UpdatedAt = time.Now().UTC()

	imagesJSON, err := json.Marshal(l.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	attrs := l.Attributes
	if attrs == nil {
		attrs = json.RawMessage("{}")
	}

	query := `
		UPDATE listings
		SET title = $1, slug = $2, description = $3, price_pence = $4, images = $5,
		    attributes = $6, status = $7, updated_at = $8
		WHERE id = $9`

	ct, err := r.db.Exec(ctx, query,
		l.Title,
		l.Slug,
		l.Description,
		l.PricePence,
		imagesJSON,
		attrs,
		l.Status,
		l.UpdatedAt,
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("listing", l.ID)
	}

	return nil
}

// Delete removes a listing by its ID.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("listing", id)
	}

	return nil
}

// Search returns a page of listings matching the filter, ordered by priority
// then recency, plus the total match count. Free-text queries use the stored
// tsvector column.
func (r *ListingRepository) Search(ctx context.Context, filter repository.ListingFilter, limit, offset int) ([]*domain.Listing, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where += ` AND status = ` + arg(filter.Status)
	}
	if filter.Type != "" {
		where += ` AND type = ` + arg(filter.Type)
	}
	if filter.AccountID != "" {
		where += ` AND account_id = ` + arg(filter.AccountID)
	}
	if filter.Query != "" {
		where += ` AND search_vector @@ plainto_tsquery('english', ` + arg(filter.Query) + `)`
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM listings ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	query := listingSelect + ` ` + where +
		` ORDER BY priority DESC, created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		l, err := scanListingRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listings: %w", err)
	}

	return listings, total, nil
}

// IncrementViews bumps the view counter for a listing.
func (r *ListingRepository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE listings SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment listing views: %w", err)
	}
	return nil
}

// CountActiveByAccount returns the number of active listings owned by the account.
func (r *ListingRepository) CountActiveByAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM listings WHERE account_id = $1 AND status = 'active'`
	if err := r.db.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active listings: %w", err)
	}
	return count, nil
}

const listingSelect = `
	SELECT id, account_id, type, title, slug, description, price_pence, images, attributes, boost_factor, priority, status, views, created_at, updated_at
	FROM listings`

func scanListingRow(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	var imagesJSON []byte

	err := row.Scan(
		&l.ID,
		&l.AccountID,
		&l.Type,
		&l.Title,
		&l.Slug,
		&l.Description,
		&l.PricePence,
		&imagesJSON,
		&l.Attributes,
		&l.BoostFactor,
		&l.Priority,
		&l.Status,
		&l.Views,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &l.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
	}

	return &l, nil
}
