package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Snapshot is one saved garden.
type Snapshot struct {
	ID          string    `json:"id"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Theme       string    `json:"theme"`
	Species     string    `json:"species"`
	FlowerCount int       `json:"flower_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// SnapshotFlower is a flower row. Colours are "#RRGGBB" strings and Stem holds
// the four control point offsets.
type SnapshotFlower struct {
	FlowerID       string        `json:"flower_id"`
	RelX           float64       `json:"rel_x"`
	MaxHeight      float64       `json:"max_height"`
	CurrentHeight  float64       `json:"current_height"`
	BloomProgress  float64       `json:"bloom_progress"`
	Species        string        `json:"species"`
	Color          string        `json:"color"`
	SecondaryColor string        `json:"secondary_color"`
	Stem           [4][2]float64 `json:"stem"`
	PlantedAt      time.Time     `json:"planted_at"`
}

// SnapshotRepository stores garden snapshots.
type SnapshotRepository struct {
	db *sql.DB
}

// Snapshots returns the snapshot repository for this store.
func (s *Store) Snapshots() *SnapshotRepository {
	return &SnapshotRepository{db: s.db}
}

// Save writes a snapshot and its flowers in one transaction. FlowerCount and
// CreatedAt are filled in.
func (r *SnapshotRepository) Save(snap *Snapshot, flowers []SnapshotFlower) error {
	snap.FlowerCount = len(flowers)
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO snapshots (id, width, height, theme, species, flower_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Width, snap.Height, snap.Theme, snap.Species, snap.FlowerCount, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO snapshot_flowers (snapshot_id, position, flower_id, rel_x, max_height,
			current_height, bloom_progress, species, color, secondary_color, stem, planted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range flowers {
		stem, err := json.Marshal(f.Stem)
		if err != nil {
			return fmt.Errorf("encode stem: %w", err)
		}
		if _, err := stmt.Exec(snap.ID, i, f.FlowerID, f.RelX, f.MaxHeight, f.CurrentHeight,
			f.BloomProgress, f.Species, f.Color, f.SecondaryColor, string(stem), f.PlantedAt); err != nil {
			return fmt.Errorf("insert flower %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Latest returns the newest snapshot with its flowers.
func (r *SnapshotRepository) Latest() (*Snapshot, []SnapshotFlower, error) {
	snap := &Snapshot{}
	err := r.db.QueryRow(
		`SELECT id, width, height, theme, species, flower_count, created_at
		 FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	).Scan(&snap.ID, &snap.Width, &snap.Height, &snap.Theme, &snap.Species, &snap.FlowerCount, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	flowers, err := r.Flowers(snap.ID)
	if err != nil {
		return nil, nil, err
	}
	return snap, flowers, nil
}

// GetByID retrieves a snapshot header by its ID.
func (r *SnapshotRepository) GetByID(id string) (*Snapshot, error) {
	snap := &Snapshot{}
	err := r.db.QueryRow(
		`SELECT id, width, height, theme, species, flower_count, created_at
		 FROM snapshots WHERE id = ?`,
		id,
	).Scan(&snap.ID, &snap.Width, &snap.Height, &snap.Theme, &snap.Species, &snap.FlowerCount, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return snap, nil
}

// Flowers returns the flowers of a snapshot in their saved order.
func (r *SnapshotRepository) Flowers(snapshotID string) ([]SnapshotFlower, error) {
	rows, err := r.db.Query(
		`SELECT flower_id, rel_x, max_height, current_height, bloom_progress, species,
			color, secondary_color, stem, planted_at
		 FROM snapshot_flowers WHERE snapshot_id = ? ORDER BY position`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flowers []SnapshotFlower
	for rows.Next() {
		var f SnapshotFlower
		var stem string
		if err := rows.Scan(&f.FlowerID, &f.RelX, &f.MaxHeight, &f.CurrentHeight, &f.BloomProgress,
			&f.Species, &f.Color, &f.SecondaryColor, &stem, &f.PlantedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stem), &f.Stem); err != nil {
			return nil, fmt.Errorf("decode stem of %s: %w", f.FlowerID, err)
		}
		flowers = append(flowers, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return flowers, nil
}

// List returns up to limit snapshots, newest first. limit <= 0 returns all.
func (r *SnapshotRepository) List(limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, width, height, theme, species, flower_count, created_at
		 FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap := &Snapshot{}
		if err := rows.Scan(&snap.ID, &snap.Width, &snap.Height, &snap.Theme, &snap.Species,
			&snap.FlowerCount, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snaps, nil
}

// Prune deletes all but the newest keep snapshots and returns how many went.
func (r *SnapshotRepository) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := r.db.Exec(
		`DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes a snapshot and its flowers.
func (r *SnapshotRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}
