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
	"sort"

	"github.com/pkg/errors"
)

// ErrNoData is returned when a report is requested for a user without
// any log entries.
var ErrNoData = errors.New("no data for user")

// UserScore is the good-posture ratio of a single user.
type UserScore struct {
	Username string
	// Ratio of good-posture entries among all entries, in [0,1].
	Ratio float64
}

// Report ranks a user among all logged users.
type Report struct {
	Username   string
	Ratio      float64
	Rank       int
	TotalUsers int
	// Percentile is 100 for the best performer and shrinks with
	// rank, relative to the number of users.
	Percentile float64
}

// UserScores returns the good-posture ratio of every logged user,
// sorted by ratio descending.
func (s *Store) UserScores(ctx context.Context) ([]UserScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, AVG(CASE WHEN status = 'Good Posture' THEN 1.0 ELSE 0 END) AS ratio
		FROM posture_log
		GROUP BY username`)
	if err != nil {
		return nil, maskAny(err)
	}
	defer rows.Close()
	var scores []UserScore
	for rows.Next() {
		var score UserScore
		if err := rows.Scan(&score.Username, &score.Ratio); err != nil {
			return nil, maskAny(err)
		}
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, maskAny(err)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Ratio > scores[j].Ratio
	})
	return scores, nil
}

// GenerateReport ranks the given user among all logged users.
func (s *Store) GenerateReport(ctx context.Context, username string) (Report, error) {
	scores, err := s.UserScores(ctx)
	if err != nil {
		return Report{}, maskAny(err)
	}
	for idx, score := range scores {
		if score.Username != username {
			continue
		}
		rank := idx + 1
		totalUsers := len(scores)
		return Report{
			Username:   username,
			Ratio:      score.Ratio,
			Rank:       rank,
			TotalUsers: totalUsers,
			Percentile: (float64(totalUsers-rank+1) / float64(totalUsers)) * 100,
		}, nil
	}
	return Report{}, maskAny(errors.Wrapf(ErrNoData, "username '%s'", username))
}
