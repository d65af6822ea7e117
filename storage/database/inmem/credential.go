package inmemdb

import (
	"context"

	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

type credentialRepository struct {
	db *credentialTable
}

var _ user.CredentialRepository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(db *DB) user.CredentialRepository {
	return &credentialRepository{db: db.credential}
}

func (repo *credentialRepository) emailTaken(email, excludedUID string) bool {
	for uid, c := range repo.db.table {
		if c.Email == email && uid != excludedUID {
			return true
		}
	}
	return false
}

func (repo *credentialRepository) CreateCredential(_ context.Context, c user.Credential) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[c.UID]; ok || repo.emailTaken(c.Email, "") {
		return user.ErrEmailExists
	}
	repo.db.table[c.UID] = &c
	return nil
}

func (repo *credentialRepository) GetCredentialByEmail(_ context.Context, email string) (user.Credential, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.table {
		if c.Email == email {
			return *c, nil
		}
	}
	return user.Credential{}, user.ErrNotFound
}

func (repo *credentialRepository) UpdateCredential(_ context.Context, c user.Credential) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[c.UID]
	if !ok {
		return user.ErrNotFound
	}
	if repo.emailTaken(c.Email, c.UID) {
		return user.ErrEmailExists
	}
	c.CreatedAt = orig.CreatedAt
	repo.db.table[c.UID] = &c
	return nil
}
