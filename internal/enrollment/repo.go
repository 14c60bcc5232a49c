package enrollment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nduongctu/face-reco-parents-preschool-child/internal/embedding"
)

// ErrImageNotFound is returned when a guardian image id does not exist.
var ErrImageNotFound = errors.New("guardian image not found")

// ImageRecord is one stored guardian reference photo with its embedding.
type ImageRecord struct {
	ID         int              `json:"id_image"`
	GuardianID int              `json:"id_ph"`
	Path       string           `json:"image_path"`
	Embedding  embedding.Vector `json:"-"`
	Mirrored   bool             `json:"mirrored"`
}

// Candidate is a reference embedding eligible for matching. Original and
// mirrored photos are independent candidates.
type Candidate struct {
	GuardianID int
	ImagePath  string
	Embedding  embedding.Vector
}

// Repository persists guardian images in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertImagePair writes the base photo and its mirrored sibling in one
// transaction so a failed mirror never leaves a half-enrolled guardian.
func (r *Repository) InsertImagePair(ctx context.Context, base, mirror ImageRecord) (ImageRecord, ImageRecord, error) {
	baseVec, err := json.Marshal(base.Embedding)
	if err != nil {
		return ImageRecord{}, ImageRecord{}, err
	}
	mirrorVec, err := json.Marshal(mirror.Embedding)
	if err != nil {
		return ImageRecord{}, ImageRecord{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ImageRecord{}, ImageRecord{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO PhuHuynh_Images (id_ph, image_path, embedding, mirrored)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id_image
	`, base.GuardianID, base.Path, baseVec)
	if err := row.Scan(&base.ID); err != nil {
		return ImageRecord{}, ImageRecord{}, err
	}

	row = tx.QueryRowContext(ctx, `
		INSERT INTO PhuHuynh_Images (id_ph, image_path, embedding, mirrored, id_goc)
		VALUES ($1, $2, $3, TRUE, $4)
		RETURNING id_image
	`, mirror.GuardianID, mirror.Path, mirrorVec, base.ID)
	if err := row.Scan(&mirror.ID); err != nil {
		return ImageRecord{}, ImageRecord{}, err
	}
	mirror.Mirrored = true

	if err := tx.Commit(); err != nil {
		return ImageRecord{}, ImageRecord{}, err
	}
	return base, mirror, nil
}

// DeleteImage removes a guardian image; the mirrored sibling goes with it via
// the id_goc cascade.
func (r *Repository) DeleteImage(ctx context.Context, imageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM PhuHuynh_Images WHERE id_image = $1`, imageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrImageNotFound
	}
	return nil
}

// ListByGuardian returns all stored reference photos for a guardian.
func (r *Repository) ListByGuardian(ctx context.Context, guardianID int) ([]ImageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id_image, id_ph, image_path, embedding, mirrored
		FROM PhuHuynh_Images
		WHERE id_ph = $1
		ORDER BY id_image
	`, guardianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ImageRecord
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CandidatesByStudents resolves every guardian reference embedding linked to
// the given students through PhuHuynh_HocSinh. An empty result is not an
// error; the caller decides policy.
func (r *Repository) CandidatesByStudents(ctx context.Context, studentIDs []int) ([]Candidate, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := make([]any, 0, len(studentIDs))
	for i, id := range studentIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT pi.id_ph, pi.image_path, pi.embedding
		FROM PhuHuynh_Images pi
		WHERE pi.id_ph IN (
			SELECT DISTINCT id_ph FROM PhuHuynh_HocSinh WHERE id_hs IN (`+placeholders+`)
		)
		ORDER BY pi.id_image
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var raw []byte
		if err := rows.Scan(&c.GuardianID, &c.ImagePath, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &c.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for guardian %d: %w", c.GuardianID, err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// LinkedStudents filters studentIDs down to the ones linked to the guardian
// through PhuHuynh_HocSinh.
func (r *Repository) LinkedStudents(ctx context.Context, guardianID int, studentIDs []int) ([]int, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := []any{guardianID}
	for i, id := range studentIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id_hs FROM PhuHuynh_HocSinh
		WHERE id_ph = $1 AND id_hs IN (`+placeholders+`)
		ORDER BY id_hs
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (ImageRecord, error) {
	var rec ImageRecord
	var raw []byte
	if err := row.Scan(&rec.ID, &rec.GuardianID, &rec.Path, &raw, &rec.Mirrored); err != nil {
		return ImageRecord{}, err
	}
	if err := json.Unmarshal(raw, &rec.Embedding); err != nil {
		return ImageRecord{}, err
	}
	return rec, nil
}
