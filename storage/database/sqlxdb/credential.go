package sqlxdb

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

type credentialRow struct {
	UID          string    `db:"uid"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type credentialRepository struct {
	db *sqlx.DB
}

var _ user.CredentialRepository = (*credentialRepository)(nil)

func NewCredentialRepository(db *sqlx.DB) user.CredentialRepository {
	return &credentialRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (repo *credentialRepository) CreateCredential(ctx context.Context, c user.Credential) error {
	_, err := repo.db.NamedExecContext(ctx, `
INSERT INTO credentials (uid, email, display_name, password_hash, created_at)
VALUES (:uid, :email, :display_name, :password_hash, :created_at)`, credentialRow(c))
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailExists
		}
		return errors.Wrap(err, "inserting credential")
	}
	return nil
}

func (repo *credentialRepository) GetCredentialByEmail(ctx context.Context, email string) (user.Credential, error) {
	var row credentialRow
	q := repo.db.Rebind(`SELECT uid, email, display_name, password_hash, created_at FROM credentials WHERE email = ?`)
	if err := repo.db.GetContext(ctx, &row, q, email); err != nil {
		if err == sql.ErrNoRows {
			return user.Credential{}, user.ErrNotFound
		}
		return user.Credential{}, errors.Wrap(err, "selecting credential")
	}
	row.CreatedAt = row.CreatedAt.UTC()
	return user.Credential(row), nil
}

func (repo *credentialRepository) UpdateCredential(ctx context.Context, c user.Credential) error {
	q := repo.db.Rebind(`UPDATE credentials SET email = ?, display_name = ?, password_hash = ? WHERE uid = ?`)
	res, err := repo.db.ExecContext(ctx, q, c.Email, c.DisplayName, c.PasswordHash, c.UID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailExists
		}
		return errors.Wrap(err, "updating credential")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}
