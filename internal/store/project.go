package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/joineazy/feedback-apiserver/types"
	"github.com/lib/pq"
)

// ProjectRepository handles persistence for projects and their team
// memberships.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts the project and its team memberships in one transaction.
func (r *ProjectRepository) Create(ctx context.Context, project types.Project, memberIDs []int) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Project{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertProject = `
		INSERT INTO projects (title, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertProject,
		project.Title,
		project.Description,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID); err != nil {
		return types.Project{}, err
	}

	const insertMember = `
		INSERT INTO project_members (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	for _, memberID := range memberIDs {
		if _, err := tx.ExecContext(ctx, insertMember, project.ID, memberID); err != nil {
			return types.Project{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Project{}, err
	}

	members, err := r.membersFor(ctx, []int{project.ID})
	if err != nil {
		return types.Project{}, err
	}
	project.TeamMembers = members[project.ID]
	if project.TeamMembers == nil {
		project.TeamMembers = []types.TeamMember{}
	}
	return project, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int) (types.Project, error) {
	const query = `
		SELECT id, title, description, created_at, updated_at
		FROM projects
		WHERE id = $1`
	var project types.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Title,
		&project.Description,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}

	members, err := r.membersFor(ctx, []int{project.ID})
	if err != nil {
		return types.Project{}, err
	}
	project.TeamMembers = members[project.ID]
	if project.TeamMembers == nil {
		project.TeamMembers = []types.TeamMember{}
	}
	return project, nil
}

// List returns projects newest first, optionally narrowed by a
// case-insensitive title substring, each with its resolved team members.
func (r *ProjectRepository) List(ctx context.Context, search string) ([]types.Project, error) {
	const query = `
		SELECT id, title, description, created_at, updated_at
		FROM projects
		WHERE title ILIKE $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, "%"+search+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0)
	ids := make([]int, 0)
	for rows.Next() {
		var project types.Project
		if err := rows.Scan(
			&project.ID,
			&project.Title,
			&project.Description,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
		ids = append(ids, project.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := r.membersFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].TeamMembers = members[projects[i].ID]
		if projects[i].TeamMembers == nil {
			projects[i].TeamMembers = []types.TeamMember{}
		}
	}
	return projects, nil
}

// Update rewrites title, description, and team membership. Not reachable
// from any route; kept as a data-layer operation.
func (r *ProjectRepository) Update(ctx context.Context, project types.Project, memberIDs []int) (types.Project, error) {
	project.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Project{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		UPDATE projects
		SET title = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := tx.ExecContext(ctx, query, project.Title, project.Description, project.UpdatedAt, project.ID)
	if err != nil {
		return types.Project{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = $1`, project.ID); err != nil {
		return types.Project{}, err
	}
	const insertMember = `
		INSERT INTO project_members (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	for _, memberID := range memberIDs {
		if _, err := tx.ExecContext(ctx, insertMember, project.ID, memberID); err != nil {
			return types.Project{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Project{}, err
	}
	return r.GetByID(ctx, project.ID)
}

// IsMember reports whether the user belongs to the project's team.
func (r *ProjectRepository) IsMember(ctx context.Context, projectID, userID int) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM project_members
			WHERE project_id = $1 AND user_id = $2
		)`
	var member bool
	if err := r.db.QueryRowContext(ctx, query, projectID, userID).Scan(&member); err != nil {
		return false, err
	}
	return member, nil
}

// membersFor resolves {id, username} pairs for the given project ids
// against the live users table.
func (r *ProjectRepository) membersFor(ctx context.Context, projectIDs []int) (map[int][]types.TeamMember, error) {
	members := make(map[int][]types.TeamMember)
	if len(projectIDs) == 0 {
		return members, nil
	}

	const query = `
		SELECT pm.project_id, u.id, u.username
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = ANY($1)
		ORDER BY u.username`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(projectIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var projectID int
		var member types.TeamMember
		if err := rows.Scan(&projectID, &member.ID, &member.Username); err != nil {
			return nil, err
		}
		members[projectID] = append(members[projectID], member)
	}
	return members, rows.Err()
}
