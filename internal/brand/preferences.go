package brand

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
)

// Kind distinguishes the two preference sets.
type Kind string

const (
	Owned    Kind = "owned"
	Wishlist Kind = "wishlist"
)

// Limits on preference sets.
const (
	MaxPerSet    = 50
	MaxBrandName = 60
)

// Preferences are a user's owned and wishlist brand sets.
type Preferences struct {
	Owned    []string `json:"owned_brands"`
	Wishlist []string `json:"wishlist_brands"`
}

// Store persists brand preferences.
type Store struct {
	db *sql.DB
}

// NewStore creates a preference store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// normalize canonicalizes and dedupes a set by Key, keeping first-seen order.
func normalize(kind Kind, brands []string) ([]string, error) {
	seen := make(map[string]bool, len(brands))
	var out []string
	for _, b := range brands {
		name, _ := Canonical(b)
		if name == "" {
			continue
		}
		if len([]rune(name)) > MaxBrandName {
			return nil, apperr.WithFields(apperr.ErrValidation, "brand name too long",
				map[string]string{string(kind) + "_brands": fmt.Sprintf("names must be at most %d characters", MaxBrandName)})
		}
		k := Key(name)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, name)
	}
	if len(out) > MaxPerSet {
		return nil, apperr.WithFields(apperr.ErrValidation, "too many brands",
			map[string]string{string(kind) + "_brands": fmt.Sprintf("at most %d brands", MaxPerSet)})
	}
	return out, nil
}

// Set replaces both of userID's preference sets.
func (s *Store) Set(ctx context.Context, userID string, prefs Preferences) (*Preferences, error) {
	owned, err := normalize(Owned, prefs.Owned)
	if err != nil {
		return nil, err
	}
	wishlist, err := normalize(Wishlist, prefs.Wishlist)
	if err != nil {
		return nil, err
	}

	now := db.Now()
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM brand_preferences WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("clearing brand preferences: %w", err)
		}
		for kind, set := range map[Kind][]string{Owned: owned, Wishlist: wishlist} {
			for _, b := range set {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO brand_preferences (user_id, kind, brand, brand_key, created_at) VALUES (?, ?, ?, ?, ?)",
					userID, string(kind), b, Key(b), now,
				); err != nil {
					return fmt.Errorf("inserting %s brand %q: %w", kind, b, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}

	return s.Get(ctx, userID)
}

// Get returns userID's preference sets in insertion order.
func (s *Store) Get(ctx context.Context, userID string) (prefs *Preferences, err error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, brand FROM brand_preferences WHERE user_id = ? ORDER BY rowid", userID)
	if err != nil {
		return nil, fmt.Errorf("loading brand preferences: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	prefs = &Preferences{Owned: []string{}, Wishlist: []string{}}
	for rows.Next() {
		var kind, b string
		if err := rows.Scan(&kind, &b); err != nil {
			return nil, fmt.Errorf("scanning brand preference: %w", err)
		}
		switch Kind(kind) {
		case Owned:
			prefs.Owned = append(prefs.Owned, b)
		case Wishlist:
			prefs.Wishlist = append(prefs.Wishlist, b)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating brand preferences: %w", err)
	}
	return prefs, nil
}

// UsersWanting returns users whose wishlist contains brand, excluding exclude.
func (s *Store) UsersWanting(ctx context.Context, brand, exclude string) ([]string, error) {
	return s.usersWith(ctx, Wishlist, brand, exclude)
}

// UsersOwning returns users whose owned set contains brand, excluding exclude.
func (s *Store) UsersOwning(ctx context.Context, brand, exclude string) ([]string, error) {
	return s.usersWith(ctx, Owned, brand, exclude)
}

func (s *Store) usersWith(ctx context.Context, kind Kind, brand, exclude string) (ids []string, err error) {
	key := Key(brand)
	if key == "" || strings.EqualFold(key, Unknown) {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM brand_preferences
		WHERE kind = ? AND brand_key = ? AND user_id <> ?
		ORDER BY user_id`,
		string(kind), key, exclude,
	)
	if err != nil {
		return nil, fmt.Errorf("finding %s users for %q: %w", kind, brand, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return ids, nil
}
