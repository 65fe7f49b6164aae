package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

const uploadCols = `id,course_id,level,file_name,file_path,file_size,file_type,uploaded_by,uploaded_at,processed_at,status`

const questionCols = `q.id,q.quiz_upload_id,q.course_id,q.level,q.question_number,q.question_text,q.options_json,
	q.correct_index,q.correct_text,q.explanation,q.question_type,q.image_url,q.tables_json,q.math_expressions_json,q.created_at`

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) CreateUpload(ctx context.Context, u Upload) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO quiz_uploads (`+uploadCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		u.ID, u.CourseID, string(u.Level), u.FileName, u.FilePath, u.FileSize, u.FileType, u.UploadedBy,
		u.UploadedAt.UnixNano(), nullTime(u.ProcessedAt), string(u.Status))
	return err
}

func (s *SQLStore) GetUpload(ctx context.Context, id string) (Upload, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+uploadCols+` FROM quiz_uploads WHERE id=$1`, id)
	u, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Upload{}, fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	return u, err
}

func (s *SQLStore) ListUploads(ctx context.Context, courseID string) ([]Upload, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+uploadCols+` FROM quiz_uploads
		WHERE course_id=$1 ORDER BY uploaded_at DESC, id DESC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateStatus(ctx context.Context, id string, to Status, at *time.Time) error {
	var res sql.Result
	var err error
	switch to {
	case StatusProcessing:
		res, err = s.db.ExecContext(ctx, `UPDATE quiz_uploads SET status=$1, processed_at=NULL WHERE id=$2`,
			string(to), id)
	case StatusProcessed, StatusError:
		res, err = s.db.ExecContext(ctx, `UPDATE quiz_uploads SET status=$1, processed_at=$2 WHERE id=$3 AND status=$4`,
			string(to), nullTime(at), id, string(StatusProcessing))
	default:
		return ErrInvalidTransition
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := s.GetUpload(ctx, id); gerr != nil {
			return gerr
		}
		return fmt.Errorf("upload %s -> %s: %w", id, to, ErrInvalidTransition)
	}
	return nil
}

func (s *SQLStore) DeleteUpload(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_questions WHERE quiz_upload_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM quiz_uploads WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQLStore) DeleteCourse(ctx context.Context, courseID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_questions WHERE quiz_upload_id IN
		(SELECT id FROM quiz_uploads WHERE course_id=$1)`, courseID); err != nil {
		return 0, err
	}
	// legacy rows may have lost their upload
	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_questions WHERE course_id=$1`, courseID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM quiz_uploads WHERE course_id=$1`, courseID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), tx.Commit()
}

func (s *SQLStore) DeleteQuestionsByUpload(ctx context.Context, uploadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM quiz_questions WHERE quiz_upload_id=$1`, uploadID)
	return err
}

func (s *SQLStore) CommitQuestions(ctx context.Context, uploadID string, qs []Question, processedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quiz_questions
		(id,quiz_upload_id,course_id,level,question_number,question_text,options_json,correct_index,correct_text,
		 explanation,question_type,image_url,tables_json,math_expressions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, q := range qs {
		if q.UploadID != uploadID {
			return fmt.Errorf("question %s belongs to upload %s, not %s", q.ID, q.UploadID, uploadID)
		}
		opts := q.Options
		if opts == nil {
			opts = []string{}
		}
		oj, err := json.Marshal(opts)
		if err != nil {
			return err
		}
		idx, txt := correctColumns(q.Correct)
		if _, err := stmt.ExecContext(ctx,
			q.ID, q.UploadID, q.CourseID, string(q.Level), q.Number, q.Text, string(oj), idx, txt,
			q.Explanation, string(q.Type), nullString(q.ImageURL), nullString(q.TablesJSON), nullString(q.MathJSON),
			q.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert question %d: %w", q.Number, err)
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE quiz_uploads SET status=$1, processed_at=$2 WHERE id=$3 AND status=$4`,
		string(StatusProcessed), processedAt.UnixNano(), uploadID, string(StatusProcessing))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("upload %s is no longer processing: %w", uploadID, ErrInvalidTransition)
	}
	return tx.Commit()
}

func (s *SQLStore) LatestProcessedUpload(ctx context.Context, courseID string, level Level) (Upload, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+uploadCols+` FROM quiz_uploads
		WHERE course_id=$1 AND level=$2 AND status=$3
		ORDER BY uploaded_at DESC, id DESC LIMIT 1`, courseID, string(level), string(StatusProcessed))
	u, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Upload{}, ErrNotFound
	}
	return u, err
}

func (s *SQLStore) QuestionsByUpload(ctx context.Context, uploadID string) ([]SourcedQuestion, error) {
	return s.querySourced(ctx, `SELECT `+questionCols+`, COALESCE(u.file_name,''), COALESCE(u.file_size,0)
		FROM quiz_questions q LEFT JOIN quiz_uploads u ON q.quiz_upload_id = u.id
		WHERE q.quiz_upload_id=$1
		ORDER BY q.question_number ASC, q.id ASC`, uploadID)
}

func (s *SQLStore) QuestionsByCourseLevel(ctx context.Context, courseID string, level Level) ([]SourcedQuestion, error) {
	return s.querySourced(ctx, `SELECT `+questionCols+`, COALESCE(u.file_name,''), COALESCE(u.file_size,0)
		FROM quiz_questions q LEFT JOIN quiz_uploads u ON q.quiz_upload_id = u.id
		WHERE q.course_id=$1 AND q.level=$2 AND COALESCE(u.status,'')<>$3
		ORDER BY q.question_number ASC, q.id ASC`, courseID, string(level), string(StatusError))
}

func (s *SQLStore) querySourced(ctx context.Context, query string, args ...any) ([]SourcedQuestion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SourcedQuestion{}
	for rows.Next() {
		var sq SourcedQuestion
		var sc questionScan
		dest := append(questionDest(&sq.Question, &sc), &sq.DocumentName, &sq.DocumentSize)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if err := sc.apply(&sq.Question); err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	var q Question
	var sc questionScan
	row := s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM quiz_questions q WHERE q.id=$1`, id)
	if err := row.Scan(questionDest(&q, &sc)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
		}
		return Question{}, err
	}
	return q, sc.apply(&q)
}

// UpdateQuestion overwrites the editable fields as given.
func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	opts := q.Options
	if opts == nil {
		opts = []string{}
	}
	oj, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	idx, txt := correctColumns(q.Correct)
	res, err := s.db.ExecContext(ctx, `UPDATE quiz_questions
		SET question_text=$1, options_json=$2, correct_index=$3, correct_text=$4, explanation=$5, question_type=$6, image_url=$7
		WHERE id=$8`,
		q.Text, string(oj), idx, txt, q.Explanation, string(q.Type), nullString(q.ImageURL), q.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %s: %w", q.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quiz_questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return nil
}

// ---- scanning helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(r rowScanner) (Upload, error) {
	var u Upload
	var level, status string
	var uploadedAt int64
	var processedAt sql.NullInt64
	if err := r.Scan(&u.ID, &u.CourseID, &level, &u.FileName, &u.FilePath, &u.FileSize, &u.FileType,
		&u.UploadedBy, &uploadedAt, &processedAt, &status); err != nil {
		return Upload{}, err
	}
	u.Level = Level(level)
	u.Status = Status(status)
	u.UploadedAt = time.Unix(0, uploadedAt).UTC()
	if processedAt.Valid {
		t := time.Unix(0, processedAt.Int64).UTC()
		u.ProcessedAt = &t
	}
	return u, nil
}

// nullable and encoded question columns, resolved by apply
type questionScan struct {
	level, typ  string
	optionsJSON string
	idx         sql.NullInt64
	txt         sql.NullString
	image       sql.NullString
	tables      sql.NullString
	math        sql.NullString
	createdAt   int64
}

func questionDest(q *Question, sc *questionScan) []any {
	return []any{&q.ID, &q.UploadID, &q.CourseID, &sc.level, &q.Number, &q.Text, &sc.optionsJSON,
		&sc.idx, &sc.txt, &q.Explanation, &sc.typ, &sc.image, &sc.tables, &sc.math, &sc.createdAt}
}

func (sc *questionScan) apply(q *Question) error {
	q.Level = Level(sc.level)
	q.Type = Type(sc.typ)
	q.Options = []string{}
	if sc.optionsJSON != "" {
		if err := json.Unmarshal([]byte(sc.optionsJSON), &q.Options); err != nil {
			return fmt.Errorf("question %s options: %w", q.ID, err)
		}
	}
	switch {
	case sc.txt.Valid:
		q.Correct = CorrectText(sc.txt.String)
	case sc.idx.Valid:
		q.Correct = CorrectIndex(int(sc.idx.Int64))
	default:
		q.Correct = CorrectText("")
	}
	q.ImageURL = ptrString(sc.image)
	q.TablesJSON = ptrString(sc.tables)
	q.MathJSON = ptrString(sc.math)
	q.CreatedAt = time.Unix(0, sc.createdAt).UTC()
	return nil
}

func correctColumns(c Correct) (sql.NullInt64, sql.NullString) {
	if c.ByText {
		return sql.NullInt64{}, sql.NullString{String: c.Text, Valid: true}
	}
	return sql.NullInt64{Int64: int64(c.Index), Valid: true}, sql.NullString{}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
