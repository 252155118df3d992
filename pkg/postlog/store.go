// Copyright 2025 The PostureKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/posturekit/PostureWorker/pkg/posture"
)

var maskAny = errors.WithStack

// timestampLayout is the format in which timestamps are stored.
const timestampLayout = "2006-01-02 15:04:05"

const createTableStmt = `
CREATE TABLE IF NOT EXISTS posture_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT,
	timestamp TEXT,
	status TEXT
)`

// Store records posture status changes per user in a SQLite database.
type Store struct {
	log zerolog.Logger
	db  *sql.DB
}

// NewStore opens (or creates) the posture log database at the given
// path. Pass ":memory:" for an in-memory database.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, maskAny(err)
	}
	// SQLite has a single writer; a second connection to an
	// in-memory database would also see an empty schema.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createTableStmt); err != nil {
		db.Close()
		return nil, maskAny(err)
	}
	return &Store{
		log: log.With().Str("component", "postlog").Logger(),
		db:  db,
	}, nil
}

// Close the database.
func (s *Store) Close() error {
	return maskAny(s.db.Close())
}

// UsernameExists returns true when the given user already has log
// entries.
func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posture_log WHERE username = ?", username)
	if err := row.Scan(&count); err != nil {
		return false, maskAny(err)
	}
	return count > 0, nil
}

// InsertStatusChange records a posture status change for the given
// user.
func (s *Store) InsertStatusChange(ctx context.Context, username string, at time.Time, status posture.Status) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO posture_log (username, timestamp, status) VALUES (?, ?, ?)",
		username, at.Format(timestampLayout), string(status))
	if err != nil {
		return maskAny(err)
	}
	s.log.Debug().
		Str("username", username).
		Str("status", string(status)).
		Msg("Recorded status change")
	return nil
}

// Entry is a single recorded status change.
type Entry struct {
	Username string
	Time     time.Time
	Status   posture.Status
}

// RecentChanges returns the latest status changes of the given user,
// newest first.
func (s *Store) RecentChanges(ctx context.Context, username string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT username, timestamp, status FROM posture_log WHERE username = ? ORDER BY id DESC LIMIT ?",
		username, limit)
	if err != nil {
		return nil, maskAny(err)
	}
	defer rows.Close()
	var result []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.Username, &ts, &e.Status); err != nil {
			return nil, maskAny(err)
		}
		if e.Time, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, maskAny(err)
		}
		result = append(result, e)
	}
	return result, maskAny(rows.Err())
}
