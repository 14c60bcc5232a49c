package school

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Teacher mirrors GiaoVien.
type Teacher struct {
	ID        int    `json:"id_gv"`
	Name      string `json:"ten_gv"`
	Gender    string `json:"gioitinh_gv"`
	BirthDate string `json:"ngaysinh_gv"`
	Address   string `json:"diachi_gv"`
	Phone     string `json:"sdt_gv"`
	Email     string `json:"email_gv"`
	AccountID int    `json:"id_taikhoan"`
}

// Student mirrors HocSinh.
type Student struct {
	ID        int    `json:"id_hs"`
	Name      string `json:"ten_hs"`
	Gender    string `json:"gioitinh_hs"`
	BirthDate string `json:"ngaysinh_hs"`
	ClassID   *int   `json:"id_lh,omitempty"`
}

// Class mirrors LopHoc.
type Class struct {
	ID        int    `json:"id_lh"`
	Name      string `json:"lophoc"`
	TeacherID *int   `json:"id_gv,omitempty"`
	YearID    *int   `json:"id_nh,omitempty"`
}

// Year mirrors NamHoc.
type Year struct {
	ID   int    `json:"id_nh"`
	Name string `json:"namhoc"`
}

// Guardian mirrors PhuHuynh.
type Guardian struct {
	ID        int    `json:"id_ph"`
	Name      string `json:"ten_ph"`
	Gender    string `json:"gioitinh_ph"`
	BirthDate string `json:"ngaysinh_ph"`
	Phone     string `json:"sdt_ph"`
	Address   string `json:"diachi_ph"`
}

// Account mirrors TaiKhoan. The password hash never leaves the repo layer.
type Account struct {
	ID           int    `json:"id_taikhoan"`
	Login        string `json:"taikhoan"`
	PasswordHash string `json:"-"`
	Role         int    `json:"quyen"`
}

// Repository is the thin CRUD layer over the school schema.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ---------- Accounts ----------

// GetAccountByLogin returns the account for a login name, or ErrNotFound.
func (r *Repository) GetAccountByLogin(ctx context.Context, login string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id_taikhoan, taikhoan, matkhau, quyen FROM TaiKhoan WHERE taikhoan = $1
	`, login)
	var a Account
	if err := row.Scan(&a.ID, &a.Login, &a.PasswordHash, &a.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// CreateAccount inserts an account with an already-hashed password.
func (r *Repository) CreateAccount(ctx context.Context, login, passwordHash string, role int) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO TaiKhoan (taikhoan, matkhau, quyen) VALUES ($1, $2, $3)
		RETURNING id_taikhoan
	`, login, passwordHash, role)
	a := Account{Login: login, PasswordHash: passwordHash, Role: role}
	if err := row.Scan(&a.ID); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id_taikhoan, taikhoan, quyen FROM TaiKhoan ORDER BY id_taikhoan
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Login, &a.Role); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) GetAccount(ctx context.Context, id int) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id_taikhoan, taikhoan, quyen FROM TaiKhoan WHERE id_taikhoan = $1
	`, id)
	var a Account
	if err := row.Scan(&a.ID, &a.Login, &a.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// UpdateAccount resets the password hash and role. The login name is the
// stable identifier and never changes.
func (r *Repository) UpdateAccount(ctx context.Context, id int, passwordHash string, role int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE TaiKhoan SET matkhau = $2, quyen = $3 WHERE id_taikhoan = $1
	`, id, passwordHash, role)
	return affected(res, err)
}

func (r *Repository) DeleteAccount(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM TaiKhoan WHERE id_taikhoan = $1`, id)
	return affected(res, err)
}

// ---------- Teachers ----------

func (r *Repository) ListTeachers(ctx context.Context) ([]Teacher, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id_gv, ten_gv, gioitinh_gv, ngaysinh_gv::text, diachi_gv, sdt_gv, email_gv, id_taikhoan
		FROM GiaoVien ORDER BY id_gv
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Teacher
	for rows.Next() {
		var t Teacher
		if err := rows.Scan(&t.ID, &t.Name, &t.Gender, &t.BirthDate, &t.Address, &t.Phone, &t.Email, &t.AccountID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTeacher(ctx context.Context, id int) (Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id_gv, ten_gv, gioitinh_gv, ngaysinh_gv::text, diachi_gv, sdt_gv, email_gv, id_taikhoan
		FROM GiaoVien WHERE id_gv = $1
	`, id)
	var t Teacher
	if err := row.Scan(&t.ID, &t.Name, &t.Gender, &t.BirthDate, &t.Address, &t.Phone, &t.Email, &t.AccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Teacher{}, ErrNotFound
		}
		return Teacher{}, err
	}
	return t, nil
}

// CreateTeacher creates the login account and the teacher row in one tx, the
// way the admin UI provisions staff.
func (r *Repository) CreateTeacher(ctx context.Context, t Teacher, login, passwordHash string, role int) (Teacher, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Teacher{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO TaiKhoan (taikhoan, matkhau, quyen) VALUES ($1, $2, $3)
		RETURNING id_taikhoan
	`, login, passwordHash, role)
	if err := row.Scan(&t.AccountID); err != nil {
		return Teacher{}, err
	}

	row = tx.QueryRowContext(ctx, `
		INSERT INTO GiaoVien (ten_gv, gioitinh_gv, ngaysinh_gv, diachi_gv, sdt_gv, email_gv, id_taikhoan)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id_gv
	`, t.Name, t.Gender, t.BirthDate, t.Address, t.Phone, t.Email, t.AccountID)
	if err := row.Scan(&t.ID); err != nil {
		return Teacher{}, err
	}
	return t, tx.Commit()
}

func (r *Repository) UpdateTeacher(ctx context.Context, t Teacher) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE GiaoVien
		SET ten_gv = $2, gioitinh_gv = $3, ngaysinh_gv = $4, diachi_gv = $5, sdt_gv = $6, email_gv = $7
		WHERE id_gv = $1
	`, t.ID, t.Name, t.Gender, t.BirthDate, t.Address, t.Phone, t.Email)
	return affected(res, err)
}

// DeleteTeacher removes the teacher and its login account.
func (r *Repository) DeleteTeacher(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var accountID int
	row := tx.QueryRowContext(ctx, `DELETE FROM GiaoVien WHERE id_gv = $1 RETURNING id_taikhoan`, id)
	if err := row.Scan(&accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM TaiKhoan WHERE id_taikhoan = $1`, accountID); err != nil {
		return err
	}
	return tx.Commit()
}

// ---------- Students ----------

func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id_hs, ten_hs, gioitinh_hs, ngaysinh_hs::text, id_lh FROM HocSinh ORDER BY id_hs
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Gender, &s.BirthDate, &s.ClassID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetStudent(ctx context.Context, id int) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id_hs, ten_hs, gioitinh_hs, ngaysinh_hs::text, id_lh FROM HocSinh WHERE id_hs = $1
	`, id)
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.Gender, &s.BirthDate, &s.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, err
	}
	return s, nil
}

func (r *Repository) CreateStudent(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO HocSinh (ten_hs, gioitinh_hs, ngaysinh_hs, id_lh)
		VALUES ($1, $2, $3, $4)
		RETURNING id_hs
	`, s.Name, s.Gender, s.BirthDate, s.ClassID)
	if err := row.Scan(&s.ID); err != nil {
		return Student{}, err
	}
	return s, nil
}

func (r *Repository) UpdateStudent(ctx context.Context, s Student) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE HocSinh SET ten_hs = $2, gioitinh_hs = $3, ngaysinh_hs = $4, id_lh = $5
		WHERE id_hs = $1
	`, s.ID, s.Name, s.Gender, s.BirthDate, s.ClassID)
	return affected(res, err)
}

func (r *Repository) DeleteStudent(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM HocSinh WHERE id_hs = $1`, id)
	return affected(res, err)
}

// LinkGuardian attaches a guardian to a student with a relationship label
// ("mother", "grandfather", ...). Relinking updates the label.
func (r *Repository) LinkGuardian(ctx context.Context, studentID, guardianID int, relationship string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO PhuHuynh_HocSinh (id_ph, id_hs, quanhe)
		VALUES ($1, $2, $3)
		ON CONFLICT (id_ph, id_hs) DO UPDATE SET quanhe = EXCLUDED.quanhe
	`, guardianID, studentID, relationship)
	return err
}

// ---------- Classes ----------

func (r *Repository) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id_lh, lophoc, id_gv, id_nh FROM LopHoc ORDER BY id_lh`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.Name, &c.TeacherID, &c.YearID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetClass(ctx context.Context, id int) (Class, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id_lh, lophoc, id_gv, id_nh FROM LopHoc WHERE id_lh = $1`, id)
	var c Class
	if err := row.Scan(&c.ID, &c.Name, &c.TeacherID, &c.YearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Class{}, ErrNotFound
		}
		return Class{}, err
	}
	return c, nil
}

func (r *Repository) CreateClass(ctx context.Context, c Class) (Class, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO LopHoc (lophoc, id_gv, id_nh) VALUES ($1, $2, $3) RETURNING id_lh
	`, c.Name, c.TeacherID, c.YearID)
	if err := row.Scan(&c.ID); err != nil {
		return Class{}, err
	}
	return c, nil
}

func (r *Repository) UpdateClass(ctx context.Context, c Class) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE LopHoc SET lophoc = $2, id_gv = $3, id_nh = $4 WHERE id_lh = $1
	`, c.ID, c.Name, c.TeacherID, c.YearID)
	return affected(res, err)
}

func (r *Repository) DeleteClass(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM LopHoc WHERE id_lh = $1`, id)
	return affected(res, err)
}

// ---------- Years ----------

func (r *Repository) ListYears(ctx context.Context) ([]Year, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id_nh, namhoc FROM NamHoc ORDER BY id_nh`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Year
	for rows.Next() {
		var y Year
		if err := rows.Scan(&y.ID, &y.Name); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

func (r *Repository) GetYear(ctx context.Context, id int) (Year, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id_nh, namhoc FROM NamHoc WHERE id_nh = $1`, id)
	var y Year
	if err := row.Scan(&y.ID, &y.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Year{}, ErrNotFound
		}
		return Year{}, err
	}
	return y, nil
}

func (r *Repository) CreateYear(ctx context.Context, name string) (Year, error) {
	row := r.db.QueryRowContext(ctx, `INSERT INTO NamHoc (namhoc) VALUES ($1) RETURNING id_nh`, name)
	y := Year{Name: name}
	if err := row.Scan(&y.ID); err != nil {
		return Year{}, err
	}
	return y, nil
}

func (r *Repository) UpdateYear(ctx context.Context, y Year) error {
	res, err := r.db.ExecContext(ctx, `UPDATE NamHoc SET namhoc = $2 WHERE id_nh = $1`, y.ID, y.Name)
	return affected(res, err)
}

func (r *Repository) DeleteYear(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM NamHoc WHERE id_nh = $1`, id)
	return affected(res, err)
}

// ---------- Guardians ----------

func (r *Repository) ListGuardians(ctx context.Context) ([]Guardian, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id_ph, ten_ph, gioitinh_ph, ngaysinh_ph::text, sdt_ph, diachi_ph FROM PhuHuynh ORDER BY id_ph
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Guardian
	for rows.Next() {
		var g Guardian
		if err := rows.Scan(&g.ID, &g.Name, &g.Gender, &g.BirthDate, &g.Phone, &g.Address); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) GetGuardian(ctx context.Context, id int) (Guardian, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id_ph, ten_ph, gioitinh_ph, ngaysinh_ph::text, sdt_ph, diachi_ph FROM PhuHuynh WHERE id_ph = $1
	`, id)
	var g Guardian
	if err := row.Scan(&g.ID, &g.Name, &g.Gender, &g.BirthDate, &g.Phone, &g.Address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Guardian{}, ErrNotFound
		}
		return Guardian{}, err
	}
	return g, nil
}

func (r *Repository) CreateGuardian(ctx context.Context, g Guardian) (Guardian, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO PhuHuynh (ten_ph, gioitinh_ph, ngaysinh_ph, sdt_ph, diachi_ph)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id_ph
	`, g.Name, g.Gender, g.BirthDate, g.Phone, g.Address)
	if err := row.Scan(&g.ID); err != nil {
		return Guardian{}, err
	}
	return g, nil
}

func (r *Repository) UpdateGuardian(ctx context.Context, g Guardian) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE PhuHuynh SET ten_ph = $2, gioitinh_ph = $3, ngaysinh_ph = $4, sdt_ph = $5, diachi_ph = $6
		WHERE id_ph = $1
	`, g.ID, g.Name, g.Gender, g.BirthDate, g.Phone, g.Address)
	return affected(res, err)
}

func (r *Repository) DeleteGuardian(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM PhuHuynh WHERE id_ph = $1`, id)
	return affected(res, err)
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
