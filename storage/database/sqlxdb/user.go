package sqlxdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

type profileRow struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	Email            string    `db:"email"`
	Role             string    `db:"role"`
	CreatedAt        time.Time `db:"created_at"`
	TokensValidAfter null.Time `db:"tokens_valid_after"`
}

func (row profileRow) profile() user.Profile {
	return user.Profile{
		ID:               row.ID,
		Name:             row.Name,
		Email:            row.Email,
		Role:             row.Role,
		CreatedAt:        row.CreatedAt.UTC(),
		TokensValidAfter: row.TokensValidAfter.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

const upsertProfile = `
INSERT INTO users (id, name, email, role, created_at, tokens_valid_after)
VALUES (:id, :name, :email, :role, :created_at, :tokens_valid_after)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    email = excluded.email,
    role = excluded.role,
    tokens_valid_after = excluded.tokens_valid_after`

func (repo *userRepository) SaveProfile(ctx context.Context, p user.Profile) error {
	row := profileRow{
		ID:               p.ID,
		Name:             p.Name,
		Email:            p.Email,
		Role:             p.Role,
		CreatedAt:        p.CreatedAt.UTC(),
		TokensValidAfter: nullTime(p.TokensValidAfter),
	}
	if _, err := repo.db.NamedExecContext(ctx, upsertProfile, row); err != nil {
		return errors.Wrap(err, "upserting profile")
	}
	return nil
}

func (repo *userRepository) getProfile(ctx context.Context, where string, arg interface{}) (user.Profile, error) {
	var row profileRow
	q := repo.db.Rebind(`SELECT id, name, email, role, created_at, tokens_valid_after FROM users WHERE ` + where)
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		if err == sql.ErrNoRows {
			return user.Profile{}, user.ErrNotFound
		}
		return user.Profile{}, errors.Wrap(err, "selecting profile")
	}
	return row.profile(), nil
}

func (repo *userRepository) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	return repo.getProfile(ctx, "id = ?", id)
}

func (repo *userRepository) GetProfileByEmail(ctx context.Context, email string) (user.Profile, error) {
	return repo.getProfile(ctx, "email = ? ORDER BY created_at LIMIT 1", email)
}

func (repo *userRepository) RevokeTokens(ctx context.Context, id string, at time.Time) error {
	q := repo.db.Rebind(`UPDATE users SET tokens_valid_after = ? WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
