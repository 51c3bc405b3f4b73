package repository

import (
	"context"
	"time"

	"codepulse/internal/common/db"
	"codepulse/internal/judge/model"
	"codepulse/internal/judge/sandbox/result"
	appErr "codepulse/pkg/errors"
)

const defaultHistoryLimit = 20

// SubmissionRepository persists graded and single-run submissions.
type SubmissionRepository interface {
	CreateGraded(ctx context.Context, sub model.GradedSubmission) (int64, time.Time, error)
	ListByProblem(ctx context.Context, userID, problemID int64, limit int) ([]model.ProblemSubmission, error)
	GetDetail(ctx context.Context, userID, submissionID int64) (model.SubmissionDetail, error)

	CreateSingle(ctx context.Context, userID int64, code string) (int64, error)
	FinishSingle(ctx context.Context, submissionID int64, status result.SingleStatus, output string) error
	ListSingle(ctx context.Context, userID int64) ([]model.SingleSubmission, error)
}

// SQLSubmissionRepository stores submissions in problem_submissions and submissions.
type SQLSubmissionRepository struct {
	db db.Database
}

// NewSubmissionRepository creates a submission repository.
func NewSubmissionRepository(database db.Database) *SQLSubmissionRepository {
	return &SQLSubmissionRepository{db: database}
}

type insertedRow struct {
	ID          int64     `db:"id"`
	SubmittedAt time.Time `db:"submitted_at"`
}

// CreateGraded inserts a graded submission and returns its id and timestamp.
func (r *SQLSubmissionRepository) CreateGraded(ctx context.Context, sub model.GradedSubmission) (int64, time.Time, error) {
	var row insertedRow
	err := r.db.Transaction(ctx, func(tx db.Querier) error {
		const insert = `
			INSERT INTO problem_submissions (problem_id, user_id, language, code, status)
			VALUES (?, ?, ?, ?, ?)`
		args := []interface{}{sub.ProblemID, sub.UserID, sub.Language, sub.Code, sub.Status}

		if r.db.Driver() == db.DriverPostgres {
			return tx.GetContext(ctx, &row, tx.Rebind(insert+" RETURNING id, submitted_at"), args...)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(insert), args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		return tx.GetContext(ctx, &row, tx.Rebind("SELECT id, submitted_at FROM problem_submissions WHERE id = ?"), id)
	})
	if err != nil {
		return 0, time.Time{}, appErr.Wrapf(err, appErr.SubmissionCreateFailed, "insert graded submission failed")
	}
	return row.ID, row.SubmittedAt, nil
}

// ListByProblem returns the newest graded submissions of a user for one problem.
func (r *SQLSubmissionRepository) ListByProblem(ctx context.Context, userID, problemID int64, limit int) ([]model.ProblemSubmission, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query := `
		SELECT id, language, status, submitted_at
		FROM problem_submissions
		WHERE problem_id = ? AND user_id = ?
		ORDER BY submitted_at DESC
		LIMIT ?`
	items := make([]model.ProblemSubmission, 0)
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), problemID, userID, limit); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list problem submissions failed")
	}
	return items, nil
}

// GetDetail returns one graded submission owned by userID.
func (r *SQLSubmissionRepository) GetDetail(ctx context.Context, userID, submissionID int64) (model.SubmissionDetail, error) {
	query := `
		SELECT ps.id, ps.problem_id, ps.language, ps.code, ps.status, ps.submitted_at,
			p.title AS problem_title
		FROM problem_submissions ps
		JOIN problems p ON ps.problem_id = p.id
		WHERE ps.id = ? AND ps.user_id = ?`
	var detail model.SubmissionDetail
	if err := r.db.GetContext(ctx, &detail, r.db.Rebind(query), submissionID, userID); err != nil {
		if db.IsNoRows(err) {
			return model.SubmissionDetail{}, appErr.New(appErr.SubmissionNotFound)
		}
		return model.SubmissionDetail{}, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}
	return detail, nil
}

// CreateSingle inserts a PENDING single-run submission and moves it to RUNNING
// in the same transaction.
func (r *SQLSubmissionRepository) CreateSingle(ctx context.Context, userID int64, code string) (int64, error) {
	var id int64
	err := r.db.Transaction(ctx, func(tx db.Querier) error {
		const insert = "INSERT INTO submissions (user_id, code, status) VALUES (?, ?, ?)"
		if r.db.Driver() == db.DriverPostgres {
			if err := tx.GetContext(ctx, &id, tx.Rebind(insert+" RETURNING id"), userID, code, string(result.SinglePending)); err != nil {
				return err
			}
		} else {
			res, err := tx.ExecContext(ctx, tx.Rebind(insert), userID, code, string(result.SinglePending))
			if err != nil {
				return err
			}
			if id, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE submissions SET status = ? WHERE id = ?"), string(result.SingleRunning), id)
		return err
	})
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.SubmissionCreateFailed, "insert submission failed")
	}
	return id, nil
}

// FinishSingle records the final status and output of a single run.
func (r *SQLSubmissionRepository) FinishSingle(ctx context.Context, submissionID int64, status result.SingleStatus, output string) error {
	query := `
		UPDATE submissions
		SET status = ?, output = ?, executed_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), string(status), output, submissionID)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "update submission failed")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErr.New(appErr.SubmissionNotFound)
	}
	return nil
}

// ListSingle returns a user's single-run history, newest first.
func (r *SQLSubmissionRepository) ListSingle(ctx context.Context, userID int64) ([]model.SingleSubmission, error) {
	query := `
		SELECT id, code, status, output, submitted_at, executed_at
		FROM submissions
		WHERE user_id = ?
		ORDER BY submitted_at DESC`
	items := make([]model.SingleSubmission, 0)
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), userID); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list submissions failed")
	}
	return items, nil
}
