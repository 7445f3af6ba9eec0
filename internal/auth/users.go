package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
	"github.com/evcraddock/mela/internal/market"
	"github.com/evcraddock/mela/internal/validate"
)

// Role is a user's permission level.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// IsValid checks if a role is recognized.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleModerator || r == RoleAdmin
}

var (
	ErrUserNotFound = apperr.NotFound("user not found")
	ErrUserExists   = apperr.WithMessage(apperr.ErrConflict, "email or username already taken")
)

// User is a marketplace member's profile.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	Localities []string  `json:"localities"`
	Role       Role      `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsStaff reports whether u may moderate.
func (u *User) IsStaff() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

// SignupInput holds the fields for a new account.
type SignupInput struct {
	Email      string   `json:"email" validate:"required,email,max=254"`
	Username   string   `json:"username" validate:"required,min=3,max=30,alphanum"`
	Name       string   `json:"name" validate:"max=80"`
	Localities []string `json:"localities" validate:"max=5,dive,locality"`
}

// ProfileInput holds optional profile changes. Nil fields are left alone.
type ProfileInput struct {
	Name       *string   `json:"name" validate:"omitempty,max=80"`
	Phone      *string   `json:"phone" validate:"omitempty,max=30"`
	AvatarURL  *string   `json:"avatar_url" validate:"omitempty,url"`
	Localities *[]string `json:"localities" validate:"omitempty,max=5,dive,locality"`
}

// UserStore manages user profiles in SQLite.
type UserStore struct {
	db         *sql.DB
	adminEmail string
}

// NewUserStore creates a user store. The admin email always gets the
// admin role.
func NewUserStore(db *sql.DB, adminEmail string) *UserStore {
	return &UserStore{db: db, adminEmail: normalizeEmail(adminEmail)}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const userColumns = `id, email, COALESCE(username, ''), name, phone, avatar_url, localities, role, is_verified, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	var localities string
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Name, &u.Phone, &u.AvatarURL,
		&localities, &u.Role, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Localities = []string{}
	if err := json.Unmarshal([]byte(localities), &u.Localities); err != nil {
		return nil, fmt.Errorf("decoding localities: %w", err)
	}
	return &u, nil
}

func canonicalLocalities(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, l := range in {
		c, _ := market.CanonicalLocality(l)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// Create signs up a new user.
func (s *UserStore) Create(ctx context.Context, in SignupInput) (*User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	localities, err := json.Marshal(canonicalLocalities(in.Localities))
	if err != nil {
		return nil, fmt.Errorf("encoding localities: %w", err)
	}

	role := RoleUser
	if in.Email == s.adminEmail {
		role = RoleAdmin
	}

	id := uuid.NewString()
	now := db.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, name, localities, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Email, strings.ToLower(in.Username), in.Name, string(localities), string(role), now, now,
	)
	if db.IsUniqueViolation(err) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return s.GetByID(ctx, id)
}

// EnsureAdmin creates the configured admin account if it does not exist
// yet, so the admin can log in on a fresh database.
func (s *UserStore) EnsureAdmin(ctx context.Context) (*User, error) {
	if s.adminEmail == "" {
		return nil, nil
	}
	u, err := s.GetByEmail(ctx, s.adminEmail)
	if err == nil {
		if u.Role != RoleAdmin {
			return s.SetRole(ctx, u.ID, RoleAdmin)
		}
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	username := "admin"
	if local := strings.SplitN(s.adminEmail, "@", 2)[0]; validate.Validator().Var(local, "min=3,max=30,alphanum") == nil {
		username = local
	}
	return s.Create(ctx, SignupInput{Email: s.adminEmail, Username: username, Name: "Admin"})
}

// GetByID returns a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByEmail returns a user by email, case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "email", normalizeEmail(email))
}

// GetByUsername returns a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.getBy(ctx, "username", strings.ToLower(strings.TrimSpace(username)))
}

func (s *UserStore) getBy(ctx context.Context, column, value string) (*User, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM users WHERE %s = ?", userColumns, column), value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// List returns all users ordered by email.
func (s *UserStore) List(ctx context.Context) (users []*User, err error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM users ORDER BY email", userColumns))
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	users = []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// UpdateProfile applies in to the user's profile.
func (s *UserStore) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var sets []string
	var args []interface{}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*in.Name))
	}
	if in.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, strings.TrimSpace(*in.Phone))
	}
	if in.AvatarURL != nil {
		sets = append(sets, "avatar_url = ?")
		args = append(args, *in.AvatarURL)
	}
	if in.Localities != nil {
		data, err := json.Marshal(canonicalLocalities(*in.Localities))
		if err != nil {
			return nil, fmt.Errorf("encoding localities: %w", err)
		}
		sets = append(sets, "localities = ?")
		args = append(args, string(data))
	}
	if len(sets) == 0 {
		return s.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, db.Now(), id)
	if err := s.exec(ctx, fmt.Sprintf("UPDATE users SET %s WHERE id = ?", strings.Join(sets, ", ")), args...); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// SetRole changes a user's role.
func (s *UserStore) SetRole(ctx context.Context, id string, role Role) (*User, error) {
	if !role.IsValid() {
		return nil, apperr.Invalid(fmt.Sprintf("invalid role: %s", role))
	}
	if err := s.exec(ctx, "UPDATE users SET role = ?, updated_at = ? WHERE id = ?", string(role), db.Now(), id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// MarkVerified records that the user proved ownership of their email.
func (s *UserStore) MarkVerified(ctx context.Context, id string) error {
	return s.exec(ctx, "UPDATE users SET is_verified = 1, updated_at = ? WHERE id = ?", db.Now(), id)
}

// Delete removes a user and, by cascade, everything they own.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, "DELETE FROM users WHERE id = ?", id)
}

// exec runs a single-row statement, mapping zero affected rows to
// ErrUserNotFound.
func (s *UserStore) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IsAdmin reports whether u is an admin, by role or by the configured
// admin email.
func (s *UserStore) IsAdmin(u *User) bool {
	return u.Role == RoleAdmin || (s.adminEmail != "" && normalizeEmail(u.Email) == s.adminEmail)
}
