package attendance

import (
	"context"
	"database/sql"
	"errors"
)

// Record is one attendance row: at most one per (student, day).
type Record struct {
	ID               int     `json:"id"`
	StudentID        int     `json:"id_hs"`
	ClassID          int     `json:"id_lh"`
	Date             string  `json:"ngay"`
	CheckIn          string  `json:"gio_vao"`
	CheckOut         *string `json:"gio_ra,omitempty"`
	PickupGuardianID *int    `json:"id_ph_don,omitempty"`
}

// Detail is the roster view joined with student and guardian names.
type Detail struct {
	StudentName  string `json:"ho_ten_hoc_sinh"`
	CheckIn      string `json:"gio_vao"`
	CheckOut     string `json:"gio_ra"`
	GuardianName string `json:"ten_phu_huynh"`
	Relationship string `json:"quan_he"`
}

// Repository persists attendance records in Postgres. Times and dates move as
// "HH:MM:SS" / "YYYY-MM-DD" strings to keep driver TIME/DATE mapping out of
// the picture.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CheckIn inserts the day's record, or returns the existing one unchanged.
// The unique index on (id_hs, ngay) collapses concurrent first check-ins to a
// single row. The second return reports whether a row was created.
func (r *Repository) CheckIn(ctx context.Context, studentID, classID int, date, at string) (Record, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO DiemDanh (id_hs, id_lh, ngay, gio_vao)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id_hs, ngay) DO NOTHING
		RETURNING id
	`, studentID, classID, date, at)

	var id int
	err := row.Scan(&id)
	switch {
	case err == nil:
		return Record{ID: id, StudentID: studentID, ClassID: classID, Date: date, CheckIn: at}, true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, err := r.Get(ctx, studentID, date)
		if err != nil {
			return Record{}, false, err
		}
		if existing == nil {
			return Record{}, false, errors.New("attendance row vanished after conflict")
		}
		return *existing, false, nil
	default:
		return Record{}, false, err
	}
}

// Get returns the (student, day) record or nil when none exists.
func (r *Repository) Get(ctx context.Context, studentID int, date string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, id_hs, id_lh, ngay::text, gio_vao::text, gio_ra::text, id_ph_don
		FROM DiemDanh
		WHERE id_hs = $1 AND ngay = $2
	`, studentID, date)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.Date, &rec.CheckIn, &rec.CheckOut, &rec.PickupGuardianID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// CheckOut sets gio_ra and the recognized guardian only while the record is
// still open; it reports whether the row transitioned.
func (r *Repository) CheckOut(ctx context.Context, studentID int, date string, guardianID int, at string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE DiemDanh
		SET gio_ra = $3, id_ph_don = $4
		WHERE id_hs = $1 AND ngay = $2 AND gio_ra IS NULL
	`, studentID, date, at, guardianID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListByClassDate returns the per-student attendance detail for a class on a
// day, ordered by student name. Rows with no pickup yet carry NULLs which the
// service replaces with placeholders.
func (r *Repository) ListByClassDate(ctx context.Context, classID int, date string) ([]Detail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT hs.ten_hs, dd.gio_vao::text, dd.gio_ra::text, ph.ten_ph, phs.quanhe
		FROM DiemDanh dd
		JOIN HocSinh hs ON hs.id_hs = dd.id_hs
		LEFT JOIN PhuHuynh ph ON ph.id_ph = dd.id_ph_don
		LEFT JOIN PhuHuynh_HocSinh phs ON phs.id_ph = dd.id_ph_don AND phs.id_hs = dd.id_hs
		WHERE dd.id_lh = $1 AND dd.ngay = $2
		ORDER BY hs.ten_hs
	`, classID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []Detail
	for rows.Next() {
		var d Detail
		var checkOut, guardianName, relationship sql.NullString
		if err := rows.Scan(&d.StudentName, &d.CheckIn, &checkOut, &guardianName, &relationship); err != nil {
			return nil, err
		}
		d.CheckOut = checkOut.String
		d.GuardianName = guardianName.String
		d.Relationship = relationship.String
		details = append(details, d)
	}
	return details, rows.Err()
}
