// Package firestoredb stores profiles and attendance in Cloud Firestore.
package firestoredb

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

// Collections
const (
	AttendanceCollection = "attendance"
	UsersCollection      = "users"
	CredentialCollection = "credentials"
)

// Open connects to the configured project. An empty credentials file uses the application default credentials.
func Open(ctx context.Context, conf *core.Config) (*firestore.Client, error) {
	if conf.Database.ProjectID == "" {
		return nil, errors.New("firestore: missing project ID")
	}
	var opts []option.ClientOption
	if conf.Database.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Database.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, conf.Database.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "opening firestore client")
	}
	return client, nil
}

// missing reports whether a failed Get only means the document is missing.
func missing(snap *firestore.DocumentSnapshot, err error) bool {
	return err != nil && snap != nil && !snap.Exists()
}
