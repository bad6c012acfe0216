/*
Package sqlite provides the SQLite-backed implementation of the school
store interfaces.

PURPOSE:
  Implements school.Store and school.TxStore using database/sql with the
  mattn/go-sqlite3 driver. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  students, guardians, grades:  who owes and where they sit
  fees:                         obligations per (grade, term)
  fee_payments:                 payment events with mirrored derived state
  fee_credits:                  overpayment credits
  fee_ledgers:                  the per-(student, fee) derived aggregate
  student_progressions:         append-only grade-transition audit trail
  system_settings:              typed key/value configuration

MONEY:
  Amounts are stored as decimal strings and parsed back with
  shopspring/decimal. Aggregate sums (SumPaid, SumCredits, TotalCollected)
  load the rows and add decimals in Go; SQL SUM over floats would lose
  precision.

TRANSACTIONS:
  WithTx runs a closure against a txStore bound to one sql.Tx. Every
  query helper takes a dbtx (satisfied by *sql.DB and *sql.Tx), so the
  same code serves both paths and reads inside a transaction see the
  transaction's own writes. A busy/locked commit surfaces as
  school.ErrConflict, which school.RunInTx retries.

CONCURRENCY:
  Opened with WAL and foreign keys on. A sync.RWMutex serializes writers;
  in production with PostgreSQL, database-level concurrency control
  handles this instead.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - school/store.go: Interface definitions
  - ledger, progression: the engines driving this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/elimu/school-engine/school"
)

// Store implements school.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grades (
		id TEXT PRIMARY KEY,
		level INTEGER NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS guardians (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		middle_name TEXT,
		last_name TEXT NOT NULL,
		phone TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		adm_no TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		middle_name TEXT,
		last_name TEXT NOT NULL,
		gender TEXT,
		grade_id TEXT NOT NULL REFERENCES grades(id),
		guardian_id TEXT REFERENCES guardians(id),
		academic_year TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		enrolled_at TEXT NOT NULL,
		graduated_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_students_grade
		ON students(grade_id, academic_year, status);
	CREATE INDEX IF NOT EXISTS idx_students_status
		ON students(status);

	CREATE TABLE IF NOT EXISTS fees (
		id TEXT PRIMARY KEY,
		grade_id TEXT NOT NULL REFERENCES grades(id),
		term TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		UNIQUE(grade_id, term)
	);

	CREATE INDEX IF NOT EXISTS idx_fees_term ON fees(term);

	CREATE TABLE IF NOT EXISTS fee_payments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		fee_id TEXT NOT NULL REFERENCES fees(id),
		amount_paid TEXT NOT NULL,
		balance TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: cumulative sums and sibling broadcasts per (student, fee)
	CREATE INDEX IF NOT EXISTS idx_payments_student_fee
		ON fee_payments(student_id, fee_id);
	CREATE INDEX IF NOT EXISTS idx_payments_status
		ON fee_payments(status);

	CREATE TABLE IF NOT EXISTS fee_credits (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		from_payment_id TEXT NOT NULL,
		applied_to_fee_id TEXT,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available',
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credits_student
		ON fee_credits(student_id, status);
	CREATE INDEX IF NOT EXISTS idx_credits_payment
		ON fee_credits(from_payment_id);

	-- Authoritative derived state, one row per (student, fee)
	CREATE TABLE IF NOT EXISTS fee_ledgers (
		student_id TEXT NOT NULL,
		fee_id TEXT NOT NULL,
		total_paid TEXT NOT NULL,
		balance TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (student_id, fee_id)
	);

	-- Append-only: no UPDATE or DELETE statements exist for this table
	CREATE TABLE IF NOT EXISTS student_progressions (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		from_grade_id TEXT NOT NULL,
		to_grade_id TEXT NOT NULL,
		academic_year TEXT NOT NULL,
		progression_type TEXT NOT NULL,
		notes TEXT,
		processed_by TEXT NOT NULL,
		processed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_progressions_year
		ON student_progressions(academic_year);
	CREATE INDEX IF NOT EXISTS idx_progressions_from_grade
		ON student_progressions(from_grade_id);

	CREATE TABLE IF NOT EXISTS system_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// dbtx is satisfied by *sql.DB and *sql.Tx so every query helper serves
// both the direct and the transactional path.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx executes fn within a database transaction. A busy or locked
// database surfaces as school.ErrConflict so callers can retry.
func (s *Store) WithTx(ctx context.Context, fn func(school.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapBusy(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapBusy(fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

// txStore implements school.Store inside one transaction. No locking:
// WithTx already holds the writer lock.
type txStore struct {
	q dbtx
}

// =============================================================================
// STUDENTS
// =============================================================================

func (s *Store) GetStudent(ctx context.Context, id school.StudentID) (*school.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getStudent(ctx, s.db, id)
}
func (t *txStore) GetStudent(ctx context.Context, id school.StudentID) (*school.Student, error) {
	return getStudent(ctx, t.q, id)
}

func (s *Store) SaveStudent(ctx context.Context, st school.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveStudent(ctx, s.db, st)
}
func (t *txStore) SaveStudent(ctx context.Context, st school.Student) error {
	return saveStudent(ctx, t.q, st)
}

func (s *Store) UpdateStudent(ctx context.Context, st school.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateStudent(ctx, s.db, st)
}
func (t *txStore) UpdateStudent(ctx context.Context, st school.Student) error {
	return updateStudent(ctx, t.q, st)
}

func (s *Store) DeleteStudent(ctx context.Context, id school.StudentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteStudent(ctx, s.db, id)
}
func (t *txStore) DeleteStudent(ctx context.Context, id school.StudentID) error {
	return deleteStudent(ctx, t.q, id)
}

func (s *Store) ListStudents(ctx context.Context, f school.StudentFilter) ([]school.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listStudents(ctx, s.db, f)
}
func (t *txStore) ListStudents(ctx context.Context, f school.StudentFilter) ([]school.Student, error) {
	return listStudents(ctx, t.q, f)
}

func (s *Store) UpdateActiveStudentsYear(ctx context.Context, newYear string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateActiveStudentsYear(ctx, s.db, newYear)
}
func (t *txStore) UpdateActiveStudentsYear(ctx context.Context, newYear string) (int, error) {
	return updateActiveStudentsYear(ctx, t.q, newYear)
}

func (s *Store) CountGraduatedInYear(ctx context.Context, year string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countGraduatedInYear(ctx, s.db, year)
}
func (t *txStore) CountGraduatedInYear(ctx context.Context, year string) (int, error) {
	return countGraduatedInYear(ctx, t.q, year)
}

const studentColumns = `id, adm_no, first_name, middle_name, last_name, gender,
	grade_id, guardian_id, academic_year, status, enrolled_at, graduated_at`

func getStudent(ctx context.Context, q dbtx, id school.StudentID) (*school.Student, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = ?`, id)
	st, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return nil, &school.NotFoundError{Kind: "student", ID: string(id)}
	}
	return st, err
}

func saveStudent(ctx context.Context, q dbtx, st school.Student) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO students
		(id, adm_no, first_name, middle_name, last_name, gender,
		 grade_id, guardian_id, academic_year, status, enrolled_at, graduated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.AdmissionNo, st.FirstName, nullString(st.MiddleName), st.LastName,
		nullString(st.Gender), st.GradeID, nullString(string(st.GuardianID)),
		st.AcademicYear, st.Status, formatTime(st.EnrolledAt), nullTime(st.GraduatedAt))
	if err != nil {
		return mapBusy(fmt.Errorf("failed to save student: %w", err))
	}
	return nil
}

func updateStudent(ctx context.Context, q dbtx, st school.Student) error {
	res, err := q.ExecContext(ctx, `
		UPDATE students SET adm_no = ?, first_name = ?, middle_name = ?,
			last_name = ?, gender = ?, grade_id = ?, guardian_id = ?,
			academic_year = ?, status = ?, graduated_at = ?
		WHERE id = ?`,
		st.AdmissionNo, st.FirstName, nullString(st.MiddleName), st.LastName,
		nullString(st.Gender), st.GradeID, nullString(string(st.GuardianID)),
		st.AcademicYear, st.Status, nullTime(st.GraduatedAt), st.ID)
	if err != nil {
		return mapBusy(fmt.Errorf("failed to update student: %w", err))
	}
	return requireRow(res, &school.NotFoundError{Kind: "student", ID: string(st.ID)})
}

func deleteStudent(ctx context.Context, q dbtx, id school.StudentID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return mapBusy(fmt.Errorf("failed to delete student: %w", err))
	}
	return requireRow(res, &school.NotFoundError{Kind: "student", ID: string(id)})
}

func listStudents(ctx context.Context, q dbtx, f school.StudentFilter) ([]school.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE 1=1`
	var args []any
	if f.GradeID != nil {
		query += ` AND grade_id = ?`
		args = append(args, *f.GradeID)
	}
	if f.AcademicYear != nil {
		query += ` AND academic_year = ?`
		args = append(args, *f.AcademicYear)
	}
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, *f.Status)
	}
	query += ` ORDER BY adm_no ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []school.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *st)
	}
	return students, rows.Err()
}

func updateActiveStudentsYear(ctx context.Context, q dbtx, newYear string) (int, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE students SET academic_year = ? WHERE status = ?`,
		newYear, school.StudentActive)
	if err != nil {
		return 0, mapBusy(fmt.Errorf("failed to stamp academic year: %w", err))
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func countGraduatedInYear(ctx context.Context, q dbtx, year string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM students
		WHERE status = ? AND graduated_at IS NOT NULL
		  AND strftime('%Y', graduated_at) = ?`,
		school.StudentGraduated, year).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*school.Student, error) {
	var (
		st          school.Student
		middleName  sql.NullString
		gender      sql.NullString
		guardianID  sql.NullString
		enrolledAt  string
		graduatedAt sql.NullString
	)
	err := row.Scan(&st.ID, &st.AdmissionNo, &st.FirstName, &middleName, &st.LastName,
		&gender, &st.GradeID, &guardianID, &st.AcademicYear, &st.Status,
		&enrolledAt, &graduatedAt)
	if err != nil {
		return nil, err
	}
	st.MiddleName = middleName.String
	st.Gender = gender.String
	st.GuardianID = school.GuardianID(guardianID.String)
	st.EnrolledAt = parseTime(enrolledAt)
	if graduatedAt.Valid {
		t := parseTime(graduatedAt.String)
		st.GraduatedAt = &t
	}
	return &st, nil
}

// =============================================================================
// GRADES
// =============================================================================

func (s *Store) GetGrade(ctx context.Context, id school.GradeID) (*school.Grade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getGrade(ctx, s.db, id)
}
func (t *txStore) GetGrade(ctx context.Context, id school.GradeID) (*school.Grade, error) {
	return getGrade(ctx, t.q, id)
}

func (s *Store) SaveGrade(ctx context.Context, g school.Grade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveGrade(ctx, s.db, g)
}
func (t *txStore) SaveGrade(ctx context.Context, g school.Grade) error {
	return saveGrade(ctx, t.q, g)
}

func (s *Store) ListGrades(ctx context.Context) ([]school.Grade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listGrades(ctx, s.db)
}
func (t *txStore) ListGrades(ctx context.Context) ([]school.Grade, error) {
	return listGrades(ctx, t.q)
}

func getGrade(ctx context.Context, q dbtx, id school.GradeID) (*school.Grade, error) {
	var g school.Grade
	err := q.QueryRowContext(ctx,
		`SELECT id, level, name FROM grades WHERE id = ?`, id).
		Scan(&g.ID, &g.Level, &g.Name)
	if err == sql.ErrNoRows {
		return nil, &school.NotFoundError{Kind: "grade", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func saveGrade(ctx context.Context, q dbtx, g school.Grade) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO grades (id, level, name) VALUES (?, ?, ?)`,
		g.ID, g.Level, g.Name)
	if err != nil {
		return mapBusy(fmt.Errorf("failed to save grade: %w", err))
	}
	return nil
}

func listGrades(ctx context.Context, q dbtx) ([]school.Grade, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, level, name FROM grades ORDER BY level ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}
	defer rows.Close()

	var grades []school.Grade
	for rows.Next() {
		var g school.Grade
		if err := rows.Scan(&g.ID, &g.Level, &g.Name); err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}

// =============================================================================
// GUARDIANS
// =============================================================================

func (s *Store) GetGuardian(ctx context.Context, id school.GuardianID) (*school.Guardian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getGuardian(ctx, s.db, `id = ?`, string(id))
}
func (t *txStore) GetGuardian(ctx context.Context, id school.GuardianID) (*school.Guardian, error) {
	return getGuardian(ctx, t.q, `id = ?`, string(id))
}

func (s *Store) FindGuardianByPhone(ctx context.Context, phone string) (*school.Guardian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getGuardian(ctx, s.db, `phone = ?`, phone)
}
func (t *txStore) FindGuardianByPhone(ctx context.Context, phone string) (*school.Guardian, error) {
	return getGuardian(ctx, t.q, `phone = ?`, phone)
}

func (s *Store) SaveGuardian(ctx context.Context, g school.Guardian) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveGuardian(ctx, s.db, g)
}
func (t *txStore) SaveGuardian(ctx context.Context, g school.Guardian) error {
	return saveGuardian(ctx, t.q, g)
}

func getGuardian(ctx context.Context, q dbtx, where, arg string) (*school.Guardian, error) {
	var (
		g          school.Guardian
		middleName sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, first_name, middle_name, last_name, phone FROM guardians WHERE `+where, arg).
		Scan(&g.ID, &g.FirstName, &middleName, &g.LastName, &g.Phone)
	if err == sql.ErrNoRows {
		return nil, &school.NotFoundError{Kind: "guardian", ID: arg}
	}
	if err != nil {
		return nil, err
	}
	g.MiddleName = middleName.String
	return &g, nil
}

func saveGuardian(ctx context.Context, q dbtx, g school.Guardian) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO guardians (id, first_name, middle_name, last_name, phone)
		 VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.FirstName, nullString(g.MiddleName), g.LastName, g.Phone)
	if err != nil {
		return mapBusy(fmt.Errorf("failed to save guardian: %w", err))
	}
	return nil
}

// =============================================================================
// FEES
// =============================================================================

func (s *Store) GetFee(ctx context.Context, id school.FeeID) (*school.Fee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getFee(ctx, s.db, id)
}
func (t *txStore) GetFee(ctx context.Context, id school.FeeID) (*school.Fee, error) {
	return getFee(ctx, t.q, id)
}

func (s *Store) SaveFee(ctx context.Context, f school.Fee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveFee(ctx, s.db, f)
}
func (t *txStore) SaveFee(ctx context.Context, f school.Fee) error {
	return saveFee(ctx, t.q, f)
}

func (s *Store) UpdateFee(ctx context.Context, f school.Fee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateFee(ctx, s.db, f)
}
func (t *txStore) UpdateFee(ctx context.Context, f school.Fee) error {
	return updateFee(ctx, t.q, f)
}

func (s *Store) DeleteFee(ctx context.Context, id school.FeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteFee(ctx, s.db, id)
}
func (t *txStore) DeleteFee(ctx context.Context, id school.FeeID) error {
	return deleteFee(ctx, t.q, id)
}

func (s *Store) ListFees(ctx context.Context, f school.FeeFilter) ([]school.Fee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listFees(ctx, s.db, f)
}
func (t *txStore) ListFees(ctx context.Context, f school.FeeFilter) ([]school.Fee, error) {
	return listFees(ctx, t.q, f)
}

func (s *Store) FeeForGradeTerm(ctx context.Context, gradeID school.GradeID, term school.Term) (*school.Fee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return feeForGradeTerm(ctx, s.db, gradeID, term)
}
func (t *txStore) FeeForGradeTerm(ctx context.Context, gradeID school.GradeID, term school.Term) (*school.Fee, error) {
	return feeForGradeTerm(ctx, t.q, gradeID, term)
}

func getFee(ctx context.Context, q dbtx, id school.FeeID) (*school.Fee, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, grade_id, term, amount, due_date FROM fees WHERE id = ?`, id)
	fee, err := scanFee(row)
	if err == sql.ErrNoRows {
		return nil, &school.NotFoundError{Kind: "fee", ID: string(id)}
	}
	return fee, err
}

func feeForGradeTerm(ctx context.Context, q dbtx, gradeID school.GradeID, term school.Term) (*school.Fee, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, grade_id, term, amount, due_date FROM fees WHERE grade_id = ? AND term = ?`,
		gradeID, term)
	fee, err := scanFee(row)
	if err == sql.ErrNoRows {
		return nil, &school.NotFoundError{Kind: "fee", ID: fmt.Sprintf("%s/%s", gradeID, term)}
	}
	return fee, err
}

func saveFee(ctx context.Context, q dbtx, f school.Fee) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO fees (id, grade_id, term, amount, due_date) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.GradeID, f.Term, f.Amount.String(), formatTime(f.DueDate))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: fee already exists for %s %s", school.ErrValidation, f.GradeID, f.Term)
		}
		return mapBusy(fmt.Errorf("failed to save fee: %w", err))
	}
	return nil
}

func updateFee(ctx context.Context, q dbtx, f school.Fee) error {
	res, err := q.ExecContext(ctx,
		`UPDATE fees SET grade_id = ?, term = ?, amount = ?, due_date = ? WHERE id = ?`,
		f.GradeID, f.Term, f.Amount.String(), formatTime(f.DueDate), f.ID)
	if err != nil {
		return mapBusy(fmt.Errorf("failed to update fee: %w", err))
	}
	return requireRow(res, &school.NotFoundError{Kind: "fee", ID: string(f.ID)})
}

func deleteFee(ctx context.Context, q dbtx, id school.FeeID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM fees WHERE id = ?`, id)
	if err != nil {
		return mapBusy(fmt.Errorf("failed to delete fee: %w", err))
	}
	return requireRow(res, &school.NotFoundError{Kind: "fee", ID: string(id)})
}

func listFees(ctx context.Context, q dbtx, f school.FeeFilter) ([]school.Fee, error) {
	query := `SELECT id, grade_id, term, amount, due_date FROM fees WHERE 1=1`
	var args []any
	if f.GradeID != nil {
		query += ` AND grade_id = ?`
		args = append(args, *f.GradeID)
	}
	if f.Term != nil {
		query += ` AND term = ?`
		args = append(args, *f.Term)
	}
	query += ` ORDER BY due_date ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fees: %w", err)
	}
	defer rows.Close()

	var fees []school.Fee
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		fees = append(fees, *fee)
	}
	return fees, rows.Err()
}

func scanFee(row rowScanner) (*school.Fee, error) {
	var (
		f       school.Fee
		amount  string
		dueDate string
	)
	if err := row.Scan(&f.ID, &f.GradeID, &f.Term, &amount, &dueDate); err != nil {
		return nil, err
	}
	f.Amount = school.MustMoney(amount)
	f.DueDate = parseTime(dueDate)
	return &f, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) GetPayment(ctx context.Context, id school.PaymentID) (*school.FeePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}
func (t *txStore) GetPayment(ctx context.Context, id school.PaymentID) (*school.FeePayment, error) {
	return getPayment(ctx, t.q, id)
}

func (s *Store) CreatePayment(ctx context.Context, p school.FeePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPayment(ctx, s.db, p)
}
func (t *txStore) CreatePayment(ctx context.Context, p school.FeePayment) error {
	return createPayment(ctx, t.q, p)
}

func (s *Store) UpdatePayment(ctx context.Context, p school.FeePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePayment(ctx, s.db, p)
}
func (t *txStore) UpdatePayment(ctx context.Context, p school.FeePayment) error {
	return updatePayment(ctx, t.q, p)
}

func (s *Store) DeletePayment(ctx context.Context, id school.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePayment(ctx, s.db, id)
}
func (t *txStore) DeletePayment(ctx context.Context, id school.PaymentID) error {
	return deletePayment(ctx, t.q, id)
}

func (s *Store) ListPayments(ctx context.Context, f school.PaymentFilter) ([]school.FeePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPayments(ctx, s.db, f)
}
func (t *txStore) ListPayments(ctx context.Context, f school.PaymentFilter) ([]school.FeePayment, error) {
	return listPayments(ctx, t.q, f)
}

func (s *Store) SumPaid(ctx context.Context, studentID school.StudentID, feeID school.FeeID, exclude school.PaymentID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumPaid(ctx, s.db, studentID, feeID, exclude)
}
func (t *txStore) SumPaid(ctx context.Context, studentID school.StudentID, feeID school.FeeID, exclude school.PaymentID) (decimal.Decimal, error) {
	return sumPaid(ctx, t.q, studentID, feeID, exclude)
}

func (s *Store) UpdateSiblingState(ctx context.Context, studentID school.StudentID, feeID school.FeeID, exclude school.PaymentID, status school.PaymentStatus, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateSiblingState(ctx, s.db, studentID, feeID, exclude, status, balance)
}
func (t *txStore) UpdateSiblingState(ctx context.Context, studentID school.StudentID, feeID school.FeeID, exclude school.PaymentID, status school.PaymentStatus, balance decimal.Decimal) error {
	return updateSiblingState(ctx, t.q, studentID, feeID, exclude, status, balance)
}

func (s *Store) CountPaymentsByStudent(ctx context.Context, id school.StudentID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countPaymentsByStudent(ctx, s.db, id)
}
func (t *txStore) CountPaymentsByStudent(ctx context.Context, id school.StudentID) (int, error) {
	return countPaymentsByStudent(ctx, t.q, id)
}

func (s *Store) TotalCollected(ctx context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalCollected(ctx, s.db)
}
func (t *txStore) TotalCollected(ctx context.Context) (decimal.Decimal, error) {
	return totalCollected(ctx, t.q)
}

func (s *Store) CountPaymentsByStatus(ctx context.Context) (map[school.PaymentStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countPaymentsByStatus(ctx, s.db)
}
func (t *txStore) CountPaymentsByStatus(ctx context.Context) (map[school.PaymentStatus]int, error) {
	return countPaymentsByStatus(ctx, t.q)
}

const paymentColumns = `id, student_id, fee_id, amount_paid, balance, status, payment_date, created_at`

func getPayment(ctx context.Context, q dbtx, id school.PaymentID) (*school.FeePayment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM fee_payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, &school.NotFoundError{Kind: "payment", ID: string(id)}
	}
	return p, err
}

func createPayment(ctx context.Context, q dbtx, p school.FeePayment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO fee_payments
		(id, student_id, fee_id, amount_paid, balance, status, payment_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StudentID, p.FeeID, p.AmountPaid.String(), p.Balance.String(),
		p.Status, formatTime(p.PaymentDate), formatTime(p.CreatedAt))
	if err != nil {
		return mapBusy(fmt.Errorf("failed to create payment: %w", err))
	}
	return nil
}

func updatePayment(ctx context.Context, q dbtx, p school.FeePayment) error {
	res, err := q.ExecContext(ctx, `
		UPDATE fee_payments SET amount_paid = ?, balance = ?, status = ?, payment_date = ?
		WHERE id = ?`,
		p.AmountPaid.String(), p.Balance.String(), p.Status, formatTime(p.PaymentDate), p.ID)
	if err != nil {
		return mapBusy(fmt.Errorf("failed to update payment: %w", err))
	}
	return requireRow(res, &school.NotFoundError{Kind: "payment", ID: string(p.ID)})
}

func deletePayment(ctx context.Context, q dbtx, id school.PaymentID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM fee_payments WHERE id = ?`, id)
	if err != nil {
		return mapBusy(fmt.Errorf("failed to delete payment: %w", err))
	}
	return requireRow(res, &school.NotFoundError{Kind: "payment", ID: string(id)})
}

func listPayments(ctx context.Context, q dbtx, f school.PaymentFilter) ([]school.FeePayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM fee_payments WHERE 1=1`
	var args []any
	if f.StudentID != nil {
		query += ` AND student_id = ?`
		args = append(args, *f.StudentID)
	}
	if f.FeeID != nil {
		query += ` AND fee_id = ?`
		args = append(args, *f.FeeID)
	}
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, *f.Status)
	}
	query += ` ORDER BY payment_date DESC, created_at DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []school.FeePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// sumPaid loads amount strings and adds decimals in Go. SQL SUM over
// floats would lose precision on money.
func sumPaid(ctx context.Context, q dbtx, studentID school.StudentID, feeID school.FeeID, exclude school.PaymentID) (decimal.Decimal, error) {
	query := `SELECT amount_paid FROM fee_payments WHERE student_id = ? AND fee_id = ?`
	args := []any{studentID, feeID}
	if exclude != "" {
		query += ` AND id != ?`
		args = append(args, exclude)
	}
	return sumColumn(ctx, q, query, args...)
}

func updateSiblingState(ctx context.Context, q dbtx, studentID school.StudentID, feeID school.FeeID, exclude school.PaymentID, status school.PaymentStatus, balance decimal.Decimal) error {
	query := `UPDATE fee_payments SET status = ?, balance = ? WHERE student_id = ? AND fee_id = ?`
	args := []any{status, balance.String(), studentID, feeID}
	if exclude != "" {
		query += ` AND id != ?`
		args = append(args, exclude)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return mapBusy(fmt.Errorf("failed to update sibling payments: %w", err))
	}
	return nil
}

func countPaymentsByStudent(ctx context.Context, q dbtx, id school.StudentID) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fee_payments WHERE student_id = ?`, id).Scan(&count)
	return count, err
}

func totalCollected(ctx context.Context, q dbtx) (decimal.Decimal, error) {
	return sumColumn(ctx, q, `SELECT amount_paid FROM fee_payments`)
}

func countPaymentsByStatus(ctx context.Context, q dbtx) (map[school.PaymentStatus]int, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM fee_payments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count payments by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[school.PaymentStatus]int)
	for rows.Next() {
		var (
			status school.PaymentStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanPayment(row rowScanner) (*school.FeePayment, error) {
	var (
		p           school.FeePayment
		amountPaid  string
		balance     string
		paymentDate string
		createdAt   string
	)
	err := row.Scan(&p.ID, &p.StudentID, &p.FeeID, &amountPaid, &balance,
		&p.Status, &paymentDate, &createdAt)
	if err != nil {
		return nil, err
	}
	p.AmountPaid = school.MustMoney(amountPaid)
	p.Balance = school.MustMoney(balance)
	p.PaymentDate = parseTime(paymentDate)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// =============================================================================
// CREDITS
// =============================================================================

func (s *Store) CreateCredit(ctx context.Context, c school.FeeCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createCredit(ctx, s.db, c)
}
func (t *txStore) CreateCredit(ctx context.Context, c school.FeeCredit) error {
	return createCredit(ctx, t.q, c)
}

func (s *Store) DeleteCreditsForPayment(ctx context.Context, paymentID school.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteCreditsForPayment(ctx, s.db, paymentID)
}
func (t *txStore) DeleteCreditsForPayment(ctx context.Context, paymentID school.PaymentID) error {
	return deleteCreditsForPayment(ctx, t.q, paymentID)
}

func (s *Store) ListCredits(ctx context.Context, f school.CreditFilter) ([]school.FeeCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCredits(ctx, s.db, f)
}
func (t *txStore) ListCredits(ctx context.Context, f school.CreditFilter) ([]school.FeeCredit, error) {
	return listCredits(ctx, t.q, f)
}

func (s *Store) SumCredits(ctx context.Context, studentID school.StudentID, status school.CreditStatus) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumCredits(ctx, s.db, &studentID, status)
}
func (t *txStore) SumCredits(ctx context.Context, studentID school.StudentID, status school.CreditStatus) (decimal.Decimal, error) {
	return sumCredits(ctx, t.q, &studentID, status)
}

func (s *Store) SumCreditsByStatus(ctx context.Context, status school.CreditStatus) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumCredits(ctx, s.db, nil, status)
}
func (t *txStore) SumCreditsByStatus(ctx context.Context, status school.CreditStatus) (decimal.Decimal, error) {
	return sumCredits(ctx, t.q, nil, status)
}

func createCredit(ctx context.Context, q dbtx, c school.FeeCredit) error {
	var appliedTo sql.NullString
	if c.AppliedToFeeID != nil {
		appliedTo = sql.NullString{String: string(*c.AppliedToFeeID), Valid: true}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO fee_credits
		(id, student_id, from_payment_id, applied_to_fee_id, amount, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StudentID, c.FromPaymentID, appliedTo, c.Amount.String(),
		c.Status, nullString(c.Notes), formatTime(c.CreatedAt))
	if err != nil {
		return mapBusy(fmt.Errorf("failed to create credit: %w", err))
	}
	return nil
}

func deleteCreditsForPayment(ctx context.Context, q dbtx, paymentID school.PaymentID) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM fee_credits WHERE from_payment_id = ?`, paymentID); err != nil {
		return mapBusy(fmt.Errorf("failed to delete credits: %w", err))
	}
	return nil
}

func listCredits(ctx context.Context, q dbtx, f school.CreditFilter) ([]school.FeeCredit, error) {
	query := `SELECT id, student_id, from_payment_id, applied_to_fee_id, amount, status, notes, created_at
		FROM fee_credits WHERE 1=1`
	var args []any
	if f.StudentID != nil {
		query += ` AND student_id = ?`
		args = append(args, *f.StudentID)
	}
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, *f.Status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}
	defer rows.Close()

	var credits []school.FeeCredit
	for rows.Next() {
		var (
			c         school.FeeCredit
			appliedTo sql.NullString
			amount    string
			notes     sql.NullString
			createdAt string
		)
		err := rows.Scan(&c.ID, &c.StudentID, &c.FromPaymentID, &appliedTo,
			&amount, &c.Status, &notes, &createdAt)
		if err != nil {
			return nil, err
		}
		if appliedTo.Valid {
			feeID := school.FeeID(appliedTo.String)
			c.AppliedToFeeID = &feeID
		}
		c.Amount = school.MustMoney(amount)
		c.Notes = notes.String
		c.CreatedAt = parseTime(createdAt)
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

func sumCredits(ctx context.Context, q dbtx, studentID *school.StudentID, status school.CreditStatus) (decimal.Decimal, error) {
	query := `SELECT amount FROM fee_credits WHERE status = ?`
	args := []any{status}
	if studentID != nil {
		query += ` AND student_id = ?`
		args = append(args, *studentID)
	}
	return sumColumn(ctx, q, query, args...)
}

// =============================================================================
// FEE LEDGERS
// =============================================================================

func (s *Store) UpsertFeeLedger(ctx context.Context, l school.FeeLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertFeeLedger(ctx, s.db, l)
}
func (t *txStore) UpsertFeeLedger(ctx context.Context, l school.FeeLedger) error {
	return upsertFeeLedger(ctx, t.q, l)
}

func (s *Store) GetFeeLedger(ctx context.Context, studentID school.StudentID, feeID school.FeeID) (*school.FeeLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getFeeLedger(ctx, s.db, studentID, feeID)
}
func (t *txStore) GetFeeLedger(ctx context.Context, studentID school.StudentID, feeID school.FeeID) (*school.FeeLedger, error) {
	return getFeeLedger(ctx, t.q, studentID, feeID)
}

func (s *Store) ListFeeLedgers(ctx context.Context, studentID school.StudentID) ([]school.FeeLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listFeeLedgers(ctx, s.db, studentID)
}
func (t *txStore) ListFeeLedgers(ctx context.Context, studentID school.StudentID) ([]school.FeeLedger, error) {
	return listFeeLedgers(ctx, t.q, studentID)
}

func upsertFeeLedger(ctx context.Context, q dbtx, l school.FeeLedger) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO fee_ledgers (student_id, fee_id, total_paid, balance, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, fee_id) DO UPDATE SET
			total_paid = excluded.total_paid,
			balance = excluded.balance,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		l.StudentID, l.FeeID, l.TotalPaid.String(), l.Balance.String(),
		l.Status, formatTime(l.UpdatedAt))
	if err != nil {
		return mapBusy(fmt.Errorf("failed to upsert fee ledger: %w", err))
	}
	return nil
}

func getFeeLedger(ctx context.Context, q dbtx, studentID school.StudentID, feeID school.FeeID) (*school.FeeLedger, error) {
	row := q.QueryRowContext(ctx, `
		SELECT student_id, fee_id, total_paid, balance, status, updated_at
		FROM fee_ledgers WHERE student_id = ? AND fee_id = ?`, studentID, feeID)
	l, err := scanFeeLedger(row)
	if err == sql.ErrNoRows {
		return nil, &school.NotFoundError{Kind: "ledger", ID: fmt.Sprintf("%s/%s", studentID, feeID)}
	}
	return l, err
}

func listFeeLedgers(ctx context.Context, q dbtx, studentID school.StudentID) ([]school.FeeLedger, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT student_id, fee_id, total_paid, balance, status, updated_at
		FROM fee_ledgers WHERE student_id = ?`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fee ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []school.FeeLedger
	for rows.Next() {
		l, err := scanFeeLedger(rows)
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, *l)
	}
	return ledgers, rows.Err()
}

func scanFeeLedger(row rowScanner) (*school.FeeLedger, error) {
	var (
		l         school.FeeLedger
		totalPaid string
		balance   string
		updatedAt string
	)
	err := row.Scan(&l.StudentID, &l.FeeID, &totalPaid, &balance, &l.Status, &updatedAt)
	if err != nil {
		return nil, err
	}
	l.TotalPaid = school.MustMoney(totalPaid)
	l.Balance = school.MustMoney(balance)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}

// =============================================================================
// PROGRESSIONS (append-only)
// =============================================================================

func (s *Store) CreateProgression(ctx context.Context, p school.StudentProgression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createProgression(ctx, s.db, p)
}
func (t *txStore) CreateProgression(ctx context.Context, p school.StudentProgression) error {
	return createProgression(ctx, t.q, p)
}

func (s *Store) ListProgressions(ctx context.Context, academicYear string) ([]school.StudentProgression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProgressions(ctx, s.db, academicYear)
}
func (t *txStore) ListProgressions(ctx context.Context, academicYear string) ([]school.StudentProgression, error) {
	return listProgressions(ctx, t.q, academicYear)
}

func (s *Store) CountProgressions(ctx context.Context, academicYear string, pt school.ProgressionType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countProgressions(ctx, s.db, academicYear, pt)
}
func (t *txStore) CountProgressions(ctx context.Context, academicYear string, pt school.ProgressionType) (int, error) {
	return countProgressions(ctx, t.q, academicYear, pt)
}

func createProgression(ctx context.Context, q dbtx, p school.StudentProgression) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO student_progressions
		(id, student_id, from_grade_id, to_grade_id, academic_year,
		 progression_type, notes, processed_by, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StudentID, p.FromGradeID, p.ToGradeID, p.AcademicYear,
		p.Type, nullString(p.Notes), p.ProcessedBy, formatTime(p.ProcessedAt))
	if err != nil {
		return mapBusy(fmt.Errorf("failed to create progression: %w", err))
	}
	return nil
}

func listProgressions(ctx context.Context, q dbtx, academicYear string) ([]school.StudentProgression, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, student_id, from_grade_id, to_grade_id, academic_year,
		       progression_type, notes, processed_by, processed_at
		FROM student_progressions WHERE academic_year = ?
		ORDER BY processed_at ASC`, academicYear)
	if err != nil {
		return nil, fmt.Errorf("failed to list progressions: %w", err)
	}
	defer rows.Close()

	var recs []school.StudentProgression
	for rows.Next() {
		var (
			p           school.StudentProgression
			notes       sql.NullString
			processedAt string
		)
		err := rows.Scan(&p.ID, &p.StudentID, &p.FromGradeID, &p.ToGradeID,
			&p.AcademicYear, &p.Type, &notes, &p.ProcessedBy, &processedAt)
		if err != nil {
			return nil, err
		}
		p.Notes = notes.String
		p.ProcessedAt = parseTime(processedAt)
		recs = append(recs, p)
	}
	return recs, rows.Err()
}

func countProgressions(ctx context.Context, q dbtx, academicYear string, pt school.ProgressionType) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM student_progressions
		WHERE academic_year = ? AND progression_type = ?`,
		academicYear, pt).Scan(&count)
	return count, err
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Store) GetSetting(ctx context.Context, key string) (*school.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSetting(ctx, s.db, key)
}
func (t *txStore) GetSetting(ctx context.Context, key string) (*school.Setting, error) {
	return getSetting(ctx, t.q, key)
}

func (s *Store) PutSetting(ctx context.Context, st school.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putSetting(ctx, s.db, st)
}
func (t *txStore) PutSetting(ctx context.Context, st school.Setting) error {
	return putSetting(ctx, t.q, st)
}

func (s *Store) ListSettings(ctx context.Context) ([]school.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSettings(ctx, s.db)
}
func (t *txStore) ListSettings(ctx context.Context) ([]school.Setting, error) {
	return listSettings(ctx, t.q)
}

func getSetting(ctx context.Context, q dbtx, key string) (*school.Setting, error) {
	var (
		st          school.Setting
		description sql.NullString
		updatedAt   string
	)
	err := q.QueryRowContext(ctx, `
		SELECT key, value, type, description, updated_at
		FROM system_settings WHERE key = ?`, key).
		Scan(&st.Key, &st.Value, &st.Type, &description, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, &school.NotFoundError{Kind: "setting", ID: key}
	}
	if err != nil {
		return nil, err
	}
	st.Description = description.String
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

func putSetting(ctx context.Context, q dbtx, st school.Setting) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO system_settings (key, value, type, description, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			type = excluded.type,
			description = excluded.description,
			updated_at = excluded.updated_at`,
		st.Key, st.Value, st.Type, nullString(st.Description), formatTime(st.UpdatedAt))
	if err != nil {
		return mapBusy(fmt.Errorf("failed to put setting: %w", err))
	}
	return nil
}

func listSettings(ctx context.Context, q dbtx) ([]school.Setting, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT key, value, type, description, updated_at
		FROM system_settings ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var out []school.Setting
	for rows.Next() {
		var (
			st          school.Setting
			description sql.NullString
			updatedAt   string
		)
		if err := rows.Scan(&st.Key, &st.Value, &st.Type, &description, &updatedAt); err != nil {
			return nil, err
		}
		st.Description = description.String
		st.UpdatedAt = parseTime(updatedAt)
		out = append(out, st)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func sumColumn(ctx context.Context, q dbtx, query string, args ...any) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum amounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(school.MustMoney(amount))
	}
	return total, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// requireRow converts a zero-row UPDATE/DELETE into the given not-found
// error.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mapBusy converts a busy/locked database error into the retryable
// conflict sentinel.
func mapBusy(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %v", school.ErrConflict, err)
	}
	return err
}
