// Package inmemdb keeps every table in process memory. Used in development and tests.
package inmemdb

import (
	"sync"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
	"github.com/AlriyanKhan/Ai-attendance/storage/database/feed"
)

type (
	DB struct {
		user       *userTable
		credential *credentialTable
		attendance *attendanceTable
		feed       *feed.Feed
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.Profile
	}

	credentialTable struct {
		sync.RWMutex
		table map[string]*user.Credential // by UID
	}

	attendanceTable struct {
		sync.RWMutex
		rows []attendance.Record // insertion order
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.Profile)},
		credential: &credentialTable{table: make(map[string]*user.Credential)},
		attendance: &attendanceTable{},
		feed:       feed.New(),
	}
	return db, nil
}

// Close stops every live query.
func (db *DB) Close() error {
	db.feed.Close()
	return nil
}
