package postgres

import (
	"context"

	"github.com/and161185/worklog/internal/model"
	"github.com/gofrs/uuid/v5"
)

// StatsRepo implements StatsRepository using PostgreSQL.
type StatsRepo struct{ db *DB }

// NewStatsRepo constructs a statistics repository.
func NewStatsRepo(db *DB) *StatsRepo { return &StatsRepo{db: db} }

const (
	qStatsClients = `SELECT ` + qClientCols + `
FROM clients
WHERE project_id=$1 AND deleted_at IS NULL
  AND ($2::text = '' OR role = $2)
  AND ($3::text = '' OR first_name ILIKE $3 OR last_name ILIKE $3 OR email ILIKE $3)
ORDER BY created_at ASC`

	qStatsLogs = `SELECT ` + qLogCols + `
FROM logs
WHERE project_id=$1 AND client_id = ANY($2::uuid[]) AND date BETWEEN $3 AND $4
ORDER BY date ASC`
)

// MembersWithLogs returns live clients matching the role filter and the
// free-text search (first name OR last name OR email), each with its logs
// dated within [f.Start, f.End].
func (r *StatsRepo) MembersWithLogs(ctx context.Context, f model.StatsFilter) ([]model.MemberLogs, error) {
	rows, err := r.db.Pool.Query(ctx, qStatsClients, f.ProjectID, string(f.Role), likePattern(f.Search))
	if err != nil {
		return nil, err
	}
	var members []model.MemberLogs
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		members = append(members, model.MemberLogs{Client: *c})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return members, nil
	}

	ids := make([]string, 0, len(members))
	index := make(map[uuid.UUID]int, len(members))
	for i, m := range members {
		ids = append(ids, m.Client.ID.String())
		index[m.Client.ID] = i
	}

	logRows, err := r.db.Pool.Query(ctx, qStatsLogs, f.ProjectID, ids, f.Start, f.End)
	if err != nil {
		return nil, err
	}
	defer logRows.Close()
	logs, err := collectLogs(logRows)
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		if i, ok := index[l.ClientID]; ok {
			members[i].Logs = append(members[i].Logs, l)
		}
	}
	return members, nil
}
