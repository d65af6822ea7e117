package firestoredb

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

// credentialDoc is keyed by email, which keeps emails unique.
type credentialDoc struct {
	UID          string    `firestore:"uid"`
	DisplayName  string    `firestore:"displayName"`
	PasswordHash []byte    `firestore:"passwordHash"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

type credentialRepository struct {
	client *firestore.Client
}

var _ user.CredentialRepository = (*credentialRepository)(nil)

func NewCredentialRepository(client *firestore.Client) user.CredentialRepository {
	return &credentialRepository{client: client}
}

func (repo *credentialRepository) coll() *firestore.CollectionRef {
	return repo.client.Collection(CredentialCollection)
}

func (repo *credentialRepository) CreateCredential(ctx context.Context, c user.Credential) error {
	ref := repo.coll().Doc(c.Email)
	return repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err == nil {
			return user.ErrEmailExists
		}
		if !missing(snap, err) {
			return errors.Wrap(err, "getting credential")
		}
		return tx.Create(ref, credentialDoc{
			UID:          c.UID,
			DisplayName:  c.DisplayName,
			PasswordHash: c.PasswordHash,
			CreatedAt:    c.CreatedAt.UTC(),
		})
	})
}

func (repo *credentialRepository) GetCredentialByEmail(ctx context.Context, email string) (user.Credential, error) {
	snap, err := repo.coll().Doc(email).Get(ctx)
	if missing(snap, err) {
		return user.Credential{}, user.ErrNotFound
	}
	if err != nil {
		return user.Credential{}, errors.Wrap(err, "getting credential")
	}
	var doc credentialDoc
	if err := snap.DataTo(&doc); err != nil {
		return user.Credential{}, errors.Wrap(err, "decoding credential")
	}
	return user.Credential{
		UID:          doc.UID,
		Email:        snap.Ref.ID,
		DisplayName:  doc.DisplayName,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt.UTC(),
	}, nil
}

// UpdateCredential moves the document when the email changed.
func (repo *credentialRepository) UpdateCredential(ctx context.Context, c user.Credential) error {
	q := repo.coll().Where("uid", "==", c.UID).Limit(1)
	return repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(q).GetAll()
		if err != nil {
			return errors.Wrap(err, "querying credential")
		}
		if len(snaps) == 0 {
			return user.ErrNotFound
		}
		var doc credentialDoc
		if err := snaps[0].DataTo(&doc); err != nil {
			return errors.Wrap(err, "decoding credential")
		}
		doc.DisplayName = c.DisplayName
		doc.PasswordHash = c.PasswordHash

		ref := repo.coll().Doc(c.Email)
		if snaps[0].Ref.ID != c.Email {
			if snap, err := tx.Get(ref); err == nil {
				return user.ErrEmailExists
			} else if !missing(snap, err) {
				return errors.Wrap(err, "getting credential")
			}
			if err := tx.Delete(snaps[0].Ref); err != nil {
				return err
			}
		}
		return tx.Set(ref, doc)
	})
}
