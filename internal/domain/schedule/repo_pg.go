package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the Postgres-backed schedule repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const schedCols = `id, doctor_id, day_of_week, start_time, end_time, is_available,
	slot_duration_minutes, max_appointments, created_at, updated_at`

func (r *repoPG) scanSchedule(row pgx.Row) (*WeeklySchedule, error) {
	var s WeeklySchedule
	err := row.Scan(&s.ID, &s.DoctorID, &s.DayOfWeek, &s.StartTime, &s.EndTime,
		&s.IsAvailable, &s.SlotDurationMinutes, &s.MaxAppointments, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *repoPG) loadBreaks(ctx context.Context, s *WeeklySchedule) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT start_time, end_time, COALESCE(description, '')
		FROM weekly_schedule_break WHERE schedule_id = $1 ORDER BY position`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var b BreakTime
		if err := rows.Scan(&b.StartTime, &b.EndTime, &b.Description); err != nil {
			return err
		}
		s.BreakTimes = append(s.BreakTimes, b)
	}
	return rows.Err()
}

func (r *repoPG) GetForDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*WeeklySchedule, error) {
	s, err := r.scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+schedCols+` FROM weekly_schedule WHERE doctor_id = $1 AND day_of_week = $2`,
		doctorID, dayOfWeek))
	if err != nil {
		return nil, err
	}
	if err := r.loadBreaks(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklySchedule, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+schedCols+` FROM weekly_schedule WHERE doctor_id = $1 ORDER BY day_of_week`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*WeeklySchedule
	for rows.Next() {
		s, err := r.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range items {
		if err := r.loadBreaks(ctx, s); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Replace swaps the doctor's whole weekly set inside one transaction, so a
// failed insert never leaves the doctor without a schedule.
func (r *repoPG) Replace(ctx context.Context, doctorID uuid.UUID, entries []*WeeklySchedule) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		conn := r.conn(ctx)
		if _, err := conn.Exec(ctx,
			`DELETE FROM weekly_schedule WHERE doctor_id = $1`, doctorID); err != nil {
			return err
		}
		for _, s := range entries {
			s.ID = uuid.New()
			s.DoctorID = doctorID
			if _, err := conn.Exec(ctx, `
				INSERT INTO weekly_schedule (id, doctor_id, day_of_week, start_time, end_time,
					is_available, slot_duration_minutes, max_appointments)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				s.ID, s.DoctorID, s.DayOfWeek, s.StartTime, s.EndTime,
				s.IsAvailable, s.SlotDurationMinutes, s.MaxAppointments); err != nil {
				return err
			}
			for i, b := range s.BreakTimes {
				if _, err := conn.Exec(ctx, `
					INSERT INTO weekly_schedule_break (id, schedule_id, position, start_time, end_time, description)
					VALUES ($1,$2,$3,$4,$5,$6)`,
					uuid.New(), s.ID, i, b.StartTime, b.EndTime, b.Description); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
