package firestoredb

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

type userRepository struct {
	client *firestore.Client
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(client *firestore.Client) user.Repository {
	return &userRepository{client: client}
}

func (repo *userRepository) coll() *firestore.CollectionRef {
	return repo.client.Collection(UsersCollection)
}

func (repo *userRepository) SaveProfile(ctx context.Context, p user.Profile) error {
	ref := repo.coll().Doc(p.ID)
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var orig user.Profile
			if err := snap.DataTo(&orig); err != nil {
				return err
			}
			p.CreatedAt = orig.CreatedAt
		case !missing(snap, err):
			return err
		}
		return tx.Set(ref, p)
	})
	return errors.Wrap(err, "saving profile")
}

func (repo *userRepository) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	snap, err := repo.coll().Doc(id).Get(ctx)
	if missing(snap, err) {
		return user.Profile{}, user.ErrNotFound
	}
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "getting profile")
	}
	return decodeProfile(snap)
}

func (repo *userRepository) GetProfileByEmail(ctx context.Context, email string) (user.Profile, error) {
	it := repo.coll().Where("email", "==", email).Limit(1).Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if err == iterator.Done {
		return user.Profile{}, user.ErrNotFound
	}
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "querying profile")
	}
	return decodeProfile(snap)
}

func (repo *userRepository) RevokeTokens(ctx context.Context, id string, at time.Time) error {
	ref := repo.coll().Doc(id)
	return repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if missing(snap, err) {
			return user.ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "getting profile")
		}
		return tx.Update(ref, []firestore.Update{{Path: "tokensValidAfter", Value: at.UTC()}})
	})
}

func decodeProfile(snap *firestore.DocumentSnapshot) (user.Profile, error) {
	var p user.Profile
	if err := snap.DataTo(&p); err != nil {
		return user.Profile{}, errors.Wrapf(err, "decoding profile %s", snap.Ref.ID)
	}
	p.ID = snap.Ref.ID
	p.CreatedAt = p.CreatedAt.UTC()
	p.TokensValidAfter = p.TokensValidAfter.UTC()
	return p, nil
}
