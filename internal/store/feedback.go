package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joineazy/feedback-apiserver/types"
)

// FeedbackRepository handles persistence for feedback records.
type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Rows carry the creation-time title snapshot; reads prefer the live
// project title and fall back to the snapshot when the project row is gone.
const feedbackColumns = `
	f.id, f.student_id, f.instructor_id, f.project_id,
	COALESCE(p.title, f.project_title) AS project_title,
	COALESCE(p.description, '') AS project_description,
	f.rubric_scores, f.comments, f.created_at,
	s.username AS student_name,
	i.username AS instructor_name`

const feedbackJoins = `
	FROM feedback f
	JOIN users s ON f.student_id = s.id
	JOIN users i ON f.instructor_id = i.id
	LEFT JOIN projects p ON f.project_id = p.id`

func (r *FeedbackRepository) Create(ctx context.Context, feedback types.Feedback) (types.Feedback, error) {
	feedback.CreatedAt = time.Now()

	scoresJSON, err := json.Marshal(feedback.RubricScores)
	if err != nil {
		return types.Feedback{}, err
	}

	const query = `
		INSERT INTO feedback (student_id, instructor_id, project_id, project_title, rubric_scores, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		feedback.StudentID,
		feedback.InstructorID,
		feedback.ProjectID,
		feedback.ProjectTitle,
		scoresJSON,
		feedback.Comments,
		feedback.CreatedAt,
	).Scan(&feedback.ID); err != nil {
		return types.Feedback{}, err
	}
	return feedback, nil
}

func (r *FeedbackRepository) GetByID(ctx context.Context, id int) (types.Feedback, error) {
	query := `SELECT` + feedbackColumns + feedbackJoins + ` WHERE f.id = $1`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return types.Feedback{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return types.Feedback{}, err
		}
		return types.Feedback{}, ErrNotFound
	}
	return scanFeedback(rows)
}

// ListForStudent returns all records addressed to the student, newest
// first.
func (r *FeedbackRepository) ListForStudent(ctx context.Context, studentID int) ([]types.Feedback, error) {
	query := `SELECT` + feedbackColumns + feedbackJoins + `
		WHERE f.student_id = $1
		ORDER BY f.created_at DESC, f.id DESC`
	return r.list(ctx, query, studentID)
}

// ListForProject returns all records for the project, newest first.
func (r *FeedbackRepository) ListForProject(ctx context.Context, projectID int) ([]types.Feedback, error) {
	query := `SELECT` + feedbackColumns + feedbackJoins + `
		WHERE f.project_id = $1
		ORDER BY f.created_at DESC, f.id DESC`
	return r.list(ctx, query, projectID)
}

// List returns records matching the filter, newest first. The projectId
// filter wins over the projectTitle substring when both are set.
func (r *FeedbackRepository) List(ctx context.Context, filter types.FeedbackFilter) ([]types.Feedback, error) {
	query := `SELECT` + feedbackColumns + feedbackJoins + ` WHERE 1=1`
	args := make([]any, 0, 2)

	if filter.StudentID != 0 {
		args = append(args, filter.StudentID)
		query += fmt.Sprintf(` AND f.student_id = $%d`, len(args))
	}
	if filter.ProjectID != 0 {
		args = append(args, filter.ProjectID)
		query += fmt.Sprintf(` AND f.project_id = $%d`, len(args))
	} else if filter.ProjectTitle != "" {
		args = append(args, "%"+filter.ProjectTitle+"%")
		query += fmt.Sprintf(` AND f.project_title ILIKE $%d`, len(args))
	}

	query += ` ORDER BY f.created_at DESC, f.id DESC`
	return r.list(ctx, query, args...)
}

func (r *FeedbackRepository) list(ctx context.Context, query string, args ...any) ([]types.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]types.Feedback, 0)
	for rows.Next() {
		feedback, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, feedback)
	}
	return records, rows.Err()
}

func scanFeedback(rows *sql.Rows) (types.Feedback, error) {
	var feedback types.Feedback
	var projectID sql.NullInt64
	var scoresJSON []byte
	if err := rows.Scan(
		&feedback.ID,
		&feedback.StudentID,
		&feedback.InstructorID,
		&projectID,
		&feedback.ProjectTitle,
		&feedback.ProjectDescription,
		&scoresJSON,
		&feedback.Comments,
		&feedback.CreatedAt,
		&feedback.StudentName,
		&feedback.InstructorName,
	); err != nil {
		return types.Feedback{}, err
	}
	if projectID.Valid {
		feedback.ProjectID = int(projectID.Int64)
	}
	if err := json.Unmarshal(scoresJSON, &feedback.RubricScores); err != nil {
		return types.Feedback{}, err
	}
	return feedback, nil
}
