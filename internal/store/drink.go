package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// dayLayout keys drinks by calendar day in the timestamp's location.
const dayLayout = "2006-01-02"

// DayKey returns the day a drink at t is counted toward.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// Drink is one counted gulp.
type Drink struct {
	ID         string          `json:"id"`
	Day        string          `json:"day"`
	ML         int             `json:"ml"`
	Source     string          `json:"source"`
	Criteria   json.RawMessage `json:"criteria"`
	OccurredAt time.Time       `json:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Progress summarizes one day of drinking against the goal.
type Progress struct {
	Day     string  `json:"day"`
	Count   int     `json:"count"`
	ML      int     `json:"ml"`
	GoalML  int     `json:"goal_ml"`
	Percent float64 `json:"percent"`
}

// Reached reports whether the goal has been met.
func (p Progress) Reached() bool {
	return p.GoalML > 0 && p.ML >= p.GoalML
}

// DrinkRepository provides access to drink records.
type DrinkRepository struct {
	db *sql.DB
}

// Drinks returns the drink repository for this store.
func (s *Store) Drinks() *DrinkRepository {
	return &DrinkRepository{db: s.db}
}

// Create inserts a drink. Day defaults to the day of OccurredAt.
func (r *DrinkRepository) Create(d *Drink) error {
	d.CreatedAt = time.Now()
	if d.Day == "" {
		d.Day = DayKey(d.OccurredAt)
	}

	criteria := d.Criteria
	if len(criteria) == 0 {
		criteria = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO drinks (id, day, ml, source, criteria, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Day, d.ML, d.Source, string(criteria), d.OccurredAt, d.CreatedAt,
	)
	return err
}

// GetByID retrieves a drink by its ID.
func (r *DrinkRepository) GetByID(id string) (*Drink, error) {
	row := r.db.QueryRow(
		`SELECT id, day, ml, source, criteria, occurred_at, created_at
		 FROM drinks WHERE id = ?`,
		id,
	)
	d, err := scanDrink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// Last returns the most recent drink of day.
func (r *DrinkRepository) Last(day string) (*Drink, error) {
	row := r.db.QueryRow(
		`SELECT id, day, ml, source, criteria, occurred_at, created_at
		 FROM drinks WHERE day = ?
		 ORDER BY occurred_at DESC, created_at DESC LIMIT 1`,
		day,
	)
	d, err := scanDrink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListByDay returns the drinks of day, oldest first.
func (r *DrinkRepository) ListByDay(day string) ([]*Drink, error) {
	rows, err := r.db.Query(
		`SELECT id, day, ml, source, criteria, occurred_at, created_at
		 FROM drinks WHERE day = ? ORDER BY occurred_at ASC`,
		day,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drinks []*Drink
	for rows.Next() {
		d, err := scanDrink(rows)
		if err != nil {
			return nil, err
		}
		drinks = append(drinks, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return drinks, nil
}

// Delete removes a drink by its ID.
func (r *DrinkRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM drinks WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Progress totals day against goalML. Percent is capped at 100.
func (r *DrinkRepository) Progress(day string, goalML int) (*Progress, error) {
	p := &Progress{Day: day, GoalML: goalML}

	err := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(ml), 0) FROM drinks WHERE day = ?`,
		day,
	).Scan(&p.Count, &p.ML)
	if err != nil {
		return nil, err
	}

	if goalML > 0 {
		p.Percent = min(100, float64(p.ML)*100/float64(goalML))
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDrink(s scanner) (*Drink, error) {
	d := &Drink{}
	var criteria string
	if err := s.Scan(&d.ID, &d.Day, &d.ML, &d.Source, &criteria, &d.OccurredAt, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Criteria = json.RawMessage(criteria)
	return d, nil
}
