package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
	"github.com/AlriyanKhan/Ai-attendance/storage/database"
)

// PrepareDB returns a migrated private in-memory sqlite database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	db, err := database.OpenSQLiteMemory(t.Name())
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateProfile(
	t *testing.T,
	repo user.Repository,
	id, name, email, role string,
	createdAt ...time.Time,
) user.Profile {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	p := user.Profile{
		ID:        id,
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
	}
	if err := repo.SaveProfile(context.Background(), p); err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	return p
}

func CreateCredential(
	t *testing.T,
	repo user.CredentialRepository,
	uid, name, email, pwd string,
) user.Credential {
	cred := user.Credential{
		UID:         uid,
		Email:       email,
		DisplayName: name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := cred.SetPassword(pwd); err != nil {
		t.Fatalf("CreateCredential() failed: %v", err)
	}
	if err := repo.CreateCredential(context.Background(), cred); err != nil {
		t.Fatalf("CreateCredential() failed: %v", err)
	}
	return cred
}

func CreateRecord(
	t *testing.T,
	repo attendance.Repository,
	userID, name string,
	confidence float64,
	at time.Time,
) attendance.Record {
	rec, err := repo.Add(context.Background(), attendance.Record{
		Timestamp:    at.UTC(),
		ImageURL:     "https://blobs.test/attendance/" + userID + ".jpg",
		FaceDetected: true,
		Confidence:   confidence,
		UserID:       userID,
		DisplayName:  name,
		RecordedAt:   at.UTC(),
	})
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}
