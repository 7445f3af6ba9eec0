package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL statements to run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT     PRIMARY KEY,
		email       TEXT     NOT NULL UNIQUE,
		username    TEXT     UNIQUE,
		name        TEXT     NOT NULL DEFAULT '',
		localities  TEXT     NOT NULL DEFAULT '[]',
		role        TEXT     NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'moderator', 'admin')),
		is_verified INTEGER  NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS brand_preferences (
		user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		kind       TEXT     NOT NULL CHECK (kind IN ('owned', 'wishlist')),
		brand      TEXT     NOT NULL,
		brand_key  TEXT     NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, kind, brand_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_brand_preferences_lookup ON brand_preferences (kind, brand_key)`,
	`CREATE TABLE IF NOT EXISTS device_tokens (
		token        TEXT     PRIMARY KEY,
		user_id      TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		platform     TEXT     NOT NULL DEFAULT '',
		created_at   DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_tokens_user ON device_tokens (user_id)`,
	`CREATE TABLE IF NOT EXISTS schools (
		id             TEXT     PRIMARY KEY,
		name           TEXT     NOT NULL,
		city           TEXT     NOT NULL,
		houses         TEXT     NOT NULL DEFAULT '[]',
		uniforms_notes TEXT     NOT NULL DEFAULT '',
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_schools_name ON schools (LOWER(name))`,
	`CREATE TABLE IF NOT EXISTS listings (
		id              TEXT     PRIMARY KEY,
		user_id         TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title           TEXT     NOT NULL,
		description     TEXT     NOT NULL DEFAULT '',
		category        TEXT     NOT NULL,
		condition       TEXT     NOT NULL,
		price_eur       TEXT     NOT NULL,
		allow_offer     INTEGER  NOT NULL DEFAULT 0,
		images          TEXT     NOT NULL DEFAULT '[]',
		locality        TEXT     NOT NULL,
		location_text   TEXT     NOT NULL DEFAULT '',
		status          TEXT     NOT NULL DEFAULT 'Active'
			CHECK (status IN ('Active', 'Reserved', 'Sold', 'Hidden', 'Deleted')),
		views_count     INTEGER  NOT NULL DEFAULT 0,
		favorites_count INTEGER  NOT NULL DEFAULT 0,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_status_created ON listings (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		listing_id TEXT     NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, listing_id)
	)`,
	`CREATE TABLE IF NOT EXISTS wanted_ads (
		id          TEXT     PRIMARY KEY,
		user_id     TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title       TEXT     NOT NULL,
		description TEXT     NOT NULL DEFAULT '',
		category    TEXT     NOT NULL,
		budget_eur  TEXT,
		locality    TEXT     NOT NULL,
		status      TEXT     NOT NULL DEFAULT 'Active'
			CHECK (status IN ('Active', 'Fulfilled', 'Hidden', 'Deleted')),
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id              TEXT     PRIMARY KEY,
		host_user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title           TEXT     NOT NULL,
		description     TEXT     NOT NULL DEFAULT '',
		venue_name      TEXT     NOT NULL DEFAULT '',
		address         TEXT     NOT NULL DEFAULT '',
		locality        TEXT     NOT NULL,
		date_start      DATETIME NOT NULL,
		date_end        DATETIME,
		capacity        INTEGER  CHECK (capacity IS NULL OR capacity > 0),
		cover_image_url TEXT     NOT NULL DEFAULT '',
		status          TEXT     NOT NULL DEFAULT 'Upcoming'
			CHECK (status IN ('Upcoming', 'Past', 'Cancelled')),
		rsvp_count      INTEGER  NOT NULL DEFAULT 0,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS event_rsvps (
		event_id   TEXT     NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id           TEXT     PRIMARY KEY,
		user_id      TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title        TEXT     NOT NULL,
		description  TEXT     NOT NULL DEFAULT '',
		category     TEXT     NOT NULL,
		locality     TEXT     NOT NULL DEFAULT '',
		price_range  TEXT     NOT NULL DEFAULT '',
		contact_info TEXT     NOT NULL DEFAULT '',
		status       TEXT     NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Inactive')),
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS garage_sales (
		id           TEXT     PRIMARY KEY,
		user_id      TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title        TEXT     NOT NULL,
		description  TEXT     NOT NULL DEFAULT '',
		location     TEXT     NOT NULL DEFAULT '',
		open_date    TEXT     NOT NULL,
		open_time    TEXT     NOT NULL DEFAULT '',
		contact_info TEXT     NOT NULL DEFAULT '',
		items_count  INTEGER  NOT NULL DEFAULT 0,
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS garage_sale_items (
		id                  TEXT     PRIMARY KEY,
		garage_sale_id      TEXT     NOT NULL REFERENCES garage_sales(id) ON DELETE CASCADE,
		name                TEXT     NOT NULL,
		description         TEXT     NOT NULL DEFAULT '',
		image_url           TEXT     NOT NULL DEFAULT '',
		estimated_value_eur TEXT,
		sort_order          INTEGER  NOT NULL DEFAULT 0,
		created_at          DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS message_threads (
		id           TEXT     PRIMARY KEY,
		item_id      TEXT     REFERENCES listings(id) ON DELETE SET NULL,
		wanted_ad_id TEXT     REFERENCES wanted_ads(id) ON DELETE SET NULL,
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS thread_participants (
		thread_id    TEXT     NOT NULL REFERENCES message_threads(id) ON DELETE CASCADE,
		user_id      TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		last_seen_at DATETIME,
		PRIMARY KEY (thread_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id         TEXT     PRIMARY KEY,
		thread_id  TEXT     NOT NULL REFERENCES message_threads(id) ON DELETE CASCADE,
		sender_id  TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		body       TEXT     NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages (thread_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id                   TEXT     PRIMARY KEY,
		user_id              TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type                 TEXT     NOT NULL
			CHECK (type IN ('match_wishlist', 'match_owned', 'message', 'event', 'system')),
		title                TEXT     NOT NULL,
		body                 TEXT     NOT NULL DEFAULT '',
		related_item_id      TEXT,
		related_wanted_ad_id TEXT,
		is_read              INTEGER  NOT NULL DEFAULT 0,
		created_at           DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id          TEXT     PRIMARY KEY,
		reviewer_id TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		reviewee_id TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		rating      INTEGER  NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment     TEXT     NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL,
		CHECK (reviewer_id <> reviewee_id),
		UNIQUE (reviewer_id, reviewee_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_reviewee ON reviews (reviewee_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id          TEXT     PRIMARY KEY,
		reporter_id TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		target_type TEXT     NOT NULL CHECK (target_type IN ('item', 'wanted', 'event', 'user', 'message')),
		target_id   TEXT     NOT NULL,
		reason      TEXT     NOT NULL CHECK (reason IN ('Counterfeit', 'Inappropriate', 'Spam', 'Other')),
		notes       TEXT     NOT NULL DEFAULT '',
		status      TEXT     NOT NULL DEFAULT 'Open' CHECK (status IN ('Open', 'Actioned', 'Dismissed')),
		resolved_by TEXT,
		resolved_at DATETIME,
		created_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS auth_tokens (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		token      TEXT     NOT NULL UNIQUE,
		email      TEXT     NOT NULL,
		expires_at DATETIME NOT NULL,
		used       INTEGER  DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT     PRIMARY KEY,
		email      TEXT     NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS passkey_credentials (
		id              TEXT    PRIMARY KEY,
		email           TEXT    NOT NULL,
		name            TEXT    NOT NULL DEFAULT '',
		credential_json TEXT    NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id           INTEGER  PRIMARY KEY AUTOINCREMENT,
		user_id      TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name         TEXT     NOT NULL,
		key_prefix   TEXT     NOT NULL,
		key_hash     TEXT     NOT NULL UNIQUE,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME
	)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	// Column additions (idempotent, checks if column exists first)
	columnMigrations := []struct {
		table, column, definition string
	}{
		{"users", "phone", "TEXT NOT NULL DEFAULT ''"},
		{"users", "avatar_url", "TEXT NOT NULL DEFAULT ''"},
		{"notifications", "emailed_at", "DATETIME"},
		{"listings", "school_id", "TEXT REFERENCES schools(id) ON DELETE SET NULL"},
	}

	for _, cm := range columnMigrations {
		if err := addColumnIfNotExists(db, cm.table, cm.column, cm.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", cm.table, cm.column, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, definition string) (err error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("checking table info: %w", err)
	}

	exists := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning column info: %w", err)
		}
		if name == column {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterating columns: %w", err)
	}
	// Close before ALTER so the pooled connection is released.
	if err := rows.Close(); err != nil {
		return fmt.Errorf("closing rows: %w", err)
	}
	if exists {
		return nil
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
