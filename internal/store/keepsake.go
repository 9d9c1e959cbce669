package store

import (
	"database/sql"
	"time"
)

// Keepsake records an exported garden image.
type Keepsake struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	FlowerCount int       `json:"flower_count"`
	Theme       string    `json:"theme"`
	CreatedAt   time.Time `json:"created_at"`
}

// KeepsakeRepository stores keepsake records.
type KeepsakeRepository struct {
	db *sql.DB
}

// Keepsakes returns the keepsake repository for this store.
func (s *Store) Keepsakes() *KeepsakeRepository {
	return &KeepsakeRepository{db: s.db}
}

// Create inserts a keepsake record.
func (r *KeepsakeRepository) Create(k *Keepsake) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO keepsakes (id, path, flower_count, theme, created_at) VALUES (?, ?, ?, ?, ?)`,
		k.ID, k.Path, k.FlowerCount, k.Theme, k.CreatedAt,
	)
	return err
}

// List returns all keepsakes, newest first.
func (r *KeepsakeRepository) List() ([]*Keepsake, error) {
	rows, err := r.db.Query(
		`SELECT id, path, flower_count, theme, created_at FROM keepsakes ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Keepsake
	for rows.Next() {
		k := &Keepsake{}
		if err := rows.Scan(&k.ID, &k.Path, &k.FlowerCount, &k.Theme, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
