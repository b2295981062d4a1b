package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"pastoral_care_worker/internal/domain/member"
)

type PostgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

const memberColumns = `id, campus_id, name, COALESCE(phone, ''), birth_date, last_contact_date,
               engagement_status, days_since_last_contact, is_archived, created_at, updated_at`

func scanMember(s rowScanner) (*member.Member, error) {
	m := &member.Member{}
	var birth, last sql.NullTime
	if err := s.Scan(&m.ID, &m.CampusID, &m.Name, &m.Phone, &birth, &last,
		&m.EngagementStatus, &m.DaysSinceLastContact, &m.IsArchived, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.BirthDate = timePtr(birth)
	m.LastContactDate = timePtr(last)
	return m, nil
}

// classifyDaysSQL mirrors member.DaysSinceContact: whole days since the last
// contact at $1, or the no-contact sentinel when there is none.
var classifyDaysSQL = `CASE WHEN last_contact_date IS NULL THEN ` + strconv.Itoa(member.NoContactDays) + `
               ELSE floor(extract(epoch FROM ($1::timestamptz - last_contact_date)) / 86400)::int END`

// classifyStatusSQL mirrors member.Thresholds.Classify over a days column.
const classifyStatusSQL = `CASE WHEN days <= $2 THEN $4 WHEN days <= $3 THEN $5 ELSE $6 END`

func (r *PostgresMemberRepository) Create(ctx context.Context, m *member.Member) error {
	newID(&m.ID)
	if m.EngagementStatus == "" {
		m.EngagementStatus = member.StatusActive
	}
	query := `INSERT INTO members (id, campus_id, name, phone, birth_date, last_contact_date,
               engagement_status, days_since_last_contact, is_archived, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, m.ID, m.CampusID, m.Name, m.Phone, m.BirthDate, m.LastContactDate,
		m.EngagementStatus, m.DaysSinceLastContact, m.IsArchived).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating member: %w", err)
	}
	return nil
}

func (r *PostgresMemberRepository) GetByID(ctx context.Context, campusID, memberID string) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE campus_id = $1 AND id = $2`
	m, err := scanMember(r.db.QueryRowContext(ctx, query, campusID, memberID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, member.ErrNotFound
		}
		return nil, fmt.Errorf("error getting member by ID: %w", err)
	}
	return m, nil
}

func (r *PostgresMemberRepository) list(ctx context.Context, query string, args ...any) ([]*member.Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing members: %w", err)
	}
	defer rows.Close()

	members := make([]*member.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning member: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func (r *PostgresMemberRepository) ListByCampus(ctx context.Context, campusID string) ([]*member.Member, error) {
	return r.list(ctx, `SELECT `+memberColumns+` FROM members
               WHERE campus_id = $1 AND is_archived = FALSE ORDER BY name`, campusID)
}

func (r *PostgresMemberRepository) ListByEngagement(ctx context.Context, campusID string, statuses []member.EngagementStatus, limit int) ([]*member.Member, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	query := `SELECT ` + memberColumns + ` FROM members
               WHERE campus_id = $1 AND is_archived = FALSE AND engagement_status = ANY($2)
               ORDER BY days_since_last_contact DESC, name`
	args := []any{campusID, pq.Array(names)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

func (r *PostgresMemberRepository) CountByEngagement(ctx context.Context, campusID string) (map[member.EngagementStatus]int, error) {
	query := `SELECT engagement_status, COUNT(*) FROM members
               WHERE campus_id = $1 AND is_archived = FALSE GROUP BY engagement_status`
	return r.countByStatus(ctx, query, campusID)
}

func (r *PostgresMemberRepository) countByStatus(ctx context.Context, query string, args ...any) (map[member.EngagementStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error counting members by engagement: %w", err)
	}
	defer rows.Close()

	counts := make(map[member.EngagementStatus]int, len(member.AllStatuses))
	for _, s := range member.AllStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status member.EngagementStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("error scanning engagement count: %w", err)
		}
		counts[status] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating engagement counts: %w", err)
	}
	return counts, nil
}

func (r *PostgresMemberRepository) UpdateLastContact(ctx context.Context, campusID, memberID string, at time.Time) error {
	query := `UPDATE members SET last_contact_date = $3, updated_at = $3 WHERE campus_id = $1 AND id = $2`
	return r.execOne(ctx, "updating last contact", query, campusID, memberID, at)
}

func (r *PostgresMemberRepository) UpdateEngagement(ctx context.Context, campusID, memberID string, status member.EngagementStatus, days int, updatedAt time.Time) error {
	query := `UPDATE members SET engagement_status = $3, days_since_last_contact = $4, updated_at = $5
               WHERE campus_id = $1 AND id = $2`
	return r.execOne(ctx, "updating engagement", query, campusID, memberID, status, days, updatedAt)
}

func (r *PostgresMemberRepository) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error %s: %w", what, err)
	}
	if n == 0 {
		return member.ErrNotFound
	}
	return nil
}

// BulkClassify recomputes every non-archived member of the campus in one
// UPDATE, using the same day arithmetic and thresholds as member.Thresholds.
func (r *PostgresMemberRepository) BulkClassify(ctx context.Context, campusID string, th member.Thresholds, now time.Time) (int64, error) {
	query := `UPDATE members m
               SET days_since_last_contact = d.days,
                   engagement_status = ` + classifyStatusSQL + `,
                   updated_at = $1
               FROM (SELECT id, ` + classifyDaysSQL + ` AS days
                     FROM members WHERE campus_id = $7 AND is_archived = FALSE) d
               WHERE m.id = d.id`
	res, err := r.db.ExecContext(ctx, query, now, th.AtRiskDays, th.DisconnectedDays,
		member.StatusActive, member.StatusAtRisk, member.StatusDisconnected, campusID)
	if err != nil {
		return 0, fmt.Errorf("error bulk classifying members: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading classified member count: %w", err)
	}
	return n, nil
}

func (r *PostgresMemberRepository) ClassifyDistribution(ctx context.Context, campusID string, th member.Thresholds, now time.Time) (map[member.EngagementStatus]int, error) {
	query := `SELECT ` + classifyStatusSQL + ` AS status, COUNT(*)
               FROM (SELECT ` + classifyDaysSQL + ` AS days
                     FROM members WHERE campus_id = $7 AND is_archived = FALSE) d
               GROUP BY status`
	return r.countByStatus(ctx, query, now, th.AtRiskDays, th.DisconnectedDays,
		member.StatusActive, member.StatusAtRisk, member.StatusDisconnected, campusID)
}
