package listing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evcraddock/mela/internal/db"
	"github.com/evcraddock/mela/internal/market"
)

// AddFavorite saves a listing for userID. Adding twice is a no-op.
func (r *Repository) AddFavorite(ctx context.Context, userID, listingID string) error {
	if _, err := r.GetByID(ctx, listingID); err != nil {
		return err
	}

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO favorites (user_id, listing_id, created_at) VALUES (?, ?, ?)",
			userID, listingID, db.Now(),
		)
		if err != nil {
			return fmt.Errorf("inserting favorite: %w", err)
		}
		return syncFavoriteCount(ctx, tx, result, listingID)
	})
}

// RemoveFavorite removes a saved listing. Removing a missing favorite is a no-op.
func (r *Repository) RemoveFavorite(ctx context.Context, userID, listingID string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"DELETE FROM favorites WHERE user_id = ? AND listing_id = ?",
			userID, listingID,
		)
		if err != nil {
			return fmt.Errorf("deleting favorite: %w", err)
		}
		return syncFavoriteCount(ctx, tx, result, listingID)
	})
}

// syncFavoriteCount recomputes favorites_count when the join table changed.
func syncFavoriteCount(ctx context.Context, tx *sql.Tx, result sql.Result, listingID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE listings SET favorites_count =
			(SELECT COUNT(*) FROM favorites WHERE listing_id = ?) WHERE id = ?`,
		listingID, listingID,
	)
	if err != nil {
		return fmt.Errorf("updating favorites count: %w", err)
	}
	return nil
}

// ListFavorites returns the visible listings userID saved, most recently saved first.
func (r *Repository) ListFavorites(ctx context.Context, userID string) (listings []*Listing, err error) {
	query := `SELECT l.id, l.user_id, l.title, l.description, l.category, l.condition, l.price_eur,
		l.allow_offer, l.images, l.locality, l.location_text, l.status, l.views_count,
		l.favorites_count, l.created_at, l.updated_at, l.school_id
		FROM favorites f JOIN listings l ON l.id = f.listing_id
		WHERE f.user_id = ? AND l.status NOT IN (?, ?)
		ORDER BY f.created_at DESC, f.rowid DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, string(market.ListingDeleted), string(market.ListingHidden))
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	listings = []*Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning favorite: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating favorites: %w", err)
	}

	return listings, nil
}
