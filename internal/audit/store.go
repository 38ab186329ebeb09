package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListParams filters the audit listing.
type ListParams struct {
	ResourceType string
	Limit        int
	Offset       int
}

// Store persists and lists audit entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, params ListParams) ([]Entry, int64, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// Insert implements Store.
func (s PGStore) Insert(ctx context.Context, e Entry) error {
	const sql = `
INSERT INTO audit_logs (actor_kind, actor_user_id, action, resource_type, resource_id, method, path, route,
	status, ip, user_agent, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb)`
	var metadata *string
	if len(e.Metadata) > 0 {
		m := string(e.Metadata)
		metadata = &m
	}
	_, err := s.Pool.Exec(ctx, sql,
		string(e.ActorKind), toNullText(e.ActorUserID), e.Action, e.ResourceType, toNullText(e.ResourceID),
		e.Method, e.Path, toNullText(e.Route), int32(e.Status), toNullText(e.IP), toNullText(e.UserAgent),
		toNullText(e.RequestID), metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List implements Store, newest first.
func (s PGStore) List(ctx context.Context, params ListParams) ([]Entry, int64, error) {
	const sql = `
SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id, method, path, route,
	status, ip, user_agent, request_id, metadata, created_at, count(*) OVER ()
FROM audit_logs
WHERE ($1 = '' OR resource_type = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`
	rows, err := s.Pool.Query(ctx, sql, strings.TrimSpace(params.ResourceType), params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var (
		out   = []Entry{}
		total int64
	)
	for rows.Next() {
		e, n, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		total = n
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, int64, error) {
	var (
		e                                      Entry
		kind                                   string
		userID, resourceID, route, ip, ua, rid pgtype.Text
		status                                 int32
		metadata                               []byte
		total                                  int64
	)
	if err := row.Scan(&e.ID, &kind, &userID, &e.Action, &e.ResourceType, &resourceID, &e.Method, &e.Path, &route,
		&status, &ip, &ua, &rid, &metadata, &e.CreatedAt, &total); err != nil {
		return Entry{}, 0, fmt.Errorf("scan audit log: %w", err)
	}
	e.ActorKind = ActorKind(kind)
	e.ActorUserID = userID.String
	e.ResourceID = resourceID.String
	e.Route = route.String
	e.Status = int(status)
	e.IP = ip.String
	e.UserAgent = ua.String
	e.RequestID = rid.String
	e.Metadata = metadata
	return e, total, nil
}

func toNullText(value string) pgtype.Text {
	if strings.TrimSpace(value) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
