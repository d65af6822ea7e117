package inmemdb

import (
	"context"
	"time"

	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) SaveProfile(_ context.Context, p user.Profile) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.table[p.ID]; ok {
		p.CreatedAt = orig.CreatedAt
	}
	repo.db.table[p.ID] = &p
	return nil
}

func (repo *userRepository) GetProfile(_ context.Context, id string) (user.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return *p, nil
	}
	return user.Profile{}, user.ErrNotFound
}

func (repo *userRepository) GetProfileByEmail(_ context.Context, email string) (user.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var found *user.Profile
	for _, p := range repo.db.table {
		if p.Email == email && (found == nil || p.CreatedAt.Before(found.CreatedAt)) {
			found = p
		}
	}
	if found == nil {
		return user.Profile{}, user.ErrNotFound
	}
	return *found, nil
}

func (repo *userRepository) RevokeTokens(_ context.Context, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.table[id]
	if !ok {
		return user.ErrNotFound
	}
	p.TokensValidAfter = at.UTC()
	return nil
}
