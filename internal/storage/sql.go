package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"pawpal/internal/care"
	logx "pawpal/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// sqlStore implements Store on database/sql. Queries are written with "?"
// placeholders and rebound for postgres.
type sqlStore struct {
	db      *sql.DB
	log     logx.Logger
	dialect dialect

	opCount    atomic.Uint64
	pruneEvery uint64
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, log logx.Logger) (*sqlStore, error) {
	st := &sqlStore{db: db, log: log, dialect: d, pruneEvery: 500}
	if err := st.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *sqlStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// rebind rewrites "?" placeholders to "$1", "$2", ... The queries here never
// contain a literal '?'.
func rebind(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (s *sqlStore) q(query string) string {
	if s.dialect == dialectPostgres {
		return rebind(query)
	}
	return query
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM owners ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqlStore) LoadOwner(ctx context.Context, id string) (*care.Owner, error) {
	var (
		o                 care.Owner
		availability, pet string
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, name, availability, pets FROM owners WHERE id = ?`), id).
		Scan(&o.ID, &o.Name, &availability, &pet)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("owner %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := o.Availability.UnmarshalText([]byte(availability)); err != nil {
		return nil, fmt.Errorf("owner %q availability: %w", id, err)
	}
	if err := json.Unmarshal([]byte(pet), &o.Pets); err != nil {
		return nil, fmt.Errorf("owner %q pets: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, pet_id, name, category, duration_minutes, priority, is_medication,
		       time_preference, scheduled_time, status, recurrence, next_due_date
		FROM tasks WHERE owner_id = ? ORDER BY position`), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("owner %q: %w", id, err)
		}
		o.Tasks = append(o.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanTask(rows *sql.Rows) (care.Task, error) {
	var (
		t                    care.Task
		priority, medication int64
		pref, status, recur  string
		at, due              sql.NullString
	)
	if err := rows.Scan(&t.ID, &t.PetID, &t.Name, &t.Category, &t.DurationMinutes, &priority, &medication,
		&pref, &at, &status, &recur, &due); err != nil {
		return t, err
	}
	t.Priority = care.Priority(priority)
	t.IsMedication = medication != 0
	t.TimePreference = care.TimePreference(pref)
	t.Status = care.Status(status)
	r, err := care.ParseRecurrence(recur)
	if err != nil {
		return t, fmt.Errorf("task %q recurrence: %w", t.ID, err)
	}
	t.Recurrence = r
	if at.Valid {
		c, err := care.ParseClock(at.String)
		if err != nil {
			return t, fmt.Errorf("task %q scheduled_time: %w", t.ID, err)
		}
		t.ScheduledTime = &c
	}
	if due.Valid {
		d, err := care.ParseDate(due.String)
		if err != nil {
			return t, fmt.Errorf("task %q next_due_date: %w", t.ID, err)
		}
		t.NextDue = &d
	}
	return t, nil
}

// SaveOwner replaces the owner row and its whole task list in one transaction.
func (s *sqlStore) SaveOwner(ctx context.Context, o *care.Owner) error {
	if err := checkOwner(o); err != nil {
		return err
	}
	pets, err := json.Marshal(o.Pets)
	if err != nil {
		return err
	}
	if o.Pets == nil {
		pets = []byte("[]")
	}
	availability, _ := o.Availability.MarshalText()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO owners(id, name, availability, pets, updated_at) VALUES(?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, availability=excluded.availability,
		  pets=excluded.pets, updated_at=excluded.updated_at`),
		o.ID, o.Name, string(availability), string(pets), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE owner_id = ?`), o.ID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO tasks(owner_id, id, position, pet_id, name, category, duration_minutes, priority,
		  is_medication, time_preference, scheduled_time, status, recurrence, next_due_date)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, t := range o.Tasks {
		var at, due any
		if c, ok := t.Fixed(); ok {
			at = c.String()
		}
		if t.NextDue != nil {
			due = t.NextDue.String()
		}
		medication := 0
		if t.IsMedication {
			medication = 1
		}
		if _, err := stmt.ExecContext(ctx,
			o.ID, t.ID, i, t.PetID, t.Name, t.Category, t.DurationMinutes, int(t.Priority),
			medication, string(t.TimePreference), at, string(t.Status), t.Recurrence.String(), due,
		); err != nil {
			return fmt.Errorf("task %q: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) DeleteOwner(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM owners WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("owner %q: %w", id, ErrNotFound)
	}
	for _, table := range []string{"tasks", "plans"} {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE owner_id = ?`), id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqlStore) SavePlan(ctx context.Context, p PlanRecord) error {
	if p.OwnerID == "" || p.Date.IsZero() {
		return errors.New("plan owner and date are required")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO plans(owner_id, plan_date, generated_at, body) VALUES(?,?,?,?)
		ON CONFLICT(owner_id, plan_date) DO UPDATE SET generated_at=excluded.generated_at, body=excluded.body`),
		p.OwnerID, p.Date.String(), p.GeneratedAt.UTC().Format(time.RFC3339Nano), string(body),
	)
	return err
}

func (s *sqlStore) LoadPlan(ctx context.Context, ownerID string, day care.Date) (*PlanRecord, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT body FROM plans WHERE owner_id = ? AND plan_date = ?`),
		ownerID, day.String()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %s/%s: %w", ownerID, day, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var p PlanRecord
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *sqlStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO audit(at, owner_id, actor, action, target, ok, err, took_ms, meta)
		VALUES(?,?,?,?,?,?,?,?,?)`),
		e.At.UTC().Format(time.RFC3339Nano), e.OwnerID, e.Actor, e.Action, nullStr(e.Target),
		ok, nullStr(e.Error), e.TookMS, nullStr(e.MetaJSON),
	)
	return err
}

func (s *sqlStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO dedup(dedup_key, expires_at) VALUES(?,?)
		ON CONFLICT(dedup_key) DO UPDATE SET expires_at=excluded.expires_at`),
		key, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		if perr := s.pruneExpired(pctx); perr != nil {
			s.log.Debug("dedup prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqlStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT expires_at FROM dedup WHERE dedup_key = ?`), key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqlStore) pruneExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM dedup WHERE expires_at < ?`), time.Now().UnixMilli())
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
