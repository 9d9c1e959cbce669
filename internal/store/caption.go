package store

import (
	"database/sql"
	"time"
)

// Caption is one garden description returned by the caption service.
type Caption struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	FlowerCount int       `json:"flower_count"`
	Locale      string    `json:"locale"`
	Theme       string    `json:"theme"`
	Fallback    bool      `json:"fallback"`
	CreatedAt   time.Time `json:"created_at"`
}

// CaptionRepository stores caption history.
type CaptionRepository struct {
	db *sql.DB
}

// Captions returns the caption repository for this store.
func (s *Store) Captions() *CaptionRepository {
	return &CaptionRepository{db: s.db}
}

// Create inserts a caption.
func (r *CaptionRepository) Create(c *Caption) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO captions (id, text, flower_count, locale, theme, fallback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Text, c.FlowerCount, c.Locale, c.Theme, c.Fallback, c.CreatedAt,
	)
	return err
}

// Latest returns the newest caption.
func (r *CaptionRepository) Latest() (*Caption, error) {
	list, err := r.List(1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// List returns up to limit captions, newest first. limit <= 0 returns all.
func (r *CaptionRepository) List(limit int) ([]*Caption, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, text, flower_count, locale, theme, fallback, created_at
		 FROM captions ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var captions []*Caption
	for rows.Next() {
		c := &Caption{}
		var fallback int
		if err := rows.Scan(&c.ID, &c.Text, &c.FlowerCount, &c.Locale, &c.Theme, &fallback, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Fallback = fallback != 0
		captions = append(captions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return captions, nil
}

// Delete removes a caption by its ID.
func (r *CaptionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM captions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}
