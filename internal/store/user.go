package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/annex/internal/model"
	"github.com/dukerupert/annex/internal/secrets"
)

// UserStore persists users and their Paperless API tokens. Tokens are
// sealed through the box before they hit the database and opened on read.
type UserStore struct {
	db  *sql.DB
	box *secrets.Box
}

func NewUserStore(db *sql.DB, box *secrets.Box) *UserStore {
	return &UserStore{db: db, box: box}
}

const userCols = `id, username, display_name, paperless_token, created_at, updated_at`

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PaperlessToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, username, displayName, token string) (*model.User, error) {
	sealed, err := s.sealToken(token)
	if err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name, paperless_token) VALUES (?, ?, ?)`,
		username, displayName, sealed,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.openToken(u)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return s.openToken(u)
}

// ListWithTokens returns every user that has a Paperless token, opened and
// ready for API use.
func (s *UserStore) ListWithTokens(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE paperless_token != '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u, err = s.openToken(u); err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) UpdateToken(ctx context.Context, id int64, token string) (*model.User, error) {
	sealed, err := s.sealToken(token)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET paperless_token = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sealed, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update token: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// sealToken leaves an empty token empty so ListWithTokens can filter on
// the column directly.
func (s *UserStore) sealToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	sealed, err := s.box.Seal(token)
	if err != nil {
		return "", fmt.Errorf("seal token: %w", err)
	}
	return sealed, nil
}

func (s *UserStore) openToken(u *model.User) (*model.User, error) {
	if u.PaperlessToken == "" {
		return u, nil
	}
	token, err := s.box.Open(u.PaperlessToken)
	if err != nil {
		return nil, fmt.Errorf("open token for user %d: %w", u.ID, err)
	}
	u.PaperlessToken = token
	return u, nil
}
