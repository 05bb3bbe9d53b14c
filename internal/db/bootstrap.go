package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joineazy/feedback-apiserver/config"
	"golang.org/x/crypto/bcrypt"
)

// Default accounts created by the seed. Every seeded account gets the
// same development password.
const (
	SeedPassword           = "password"
	seedInstructorUsername = "instructor"
	seedStudentUsername    = "student"
)

var seedStudents = []string{
	seedStudentUsername,
	"alexsmith",
	"mikelee",
	"sarahwilson",
	"jessicachen",
	"davidjohnson",
	"emmadavis",
}

var seedProjects = []struct {
	title       string
	description string
}{
	{
		"Web Development Final Project",
		"Build a full-stack web application using React and Node.js that allows users to create and share content.",
	},
	{
		"Data Science Portfolio",
		"Create a comprehensive data analysis project with visualizations using Python, Pandas, and Matplotlib.",
	},
	{
		"Mobile App Development",
		"Develop a cross-platform mobile application using React Native for tracking fitness activities and nutrition.",
	},
	{
		"Database Design Project",
		"Design and implement a normalized database for an e-commerce business application with complex relationships.",
	},
	{
		"AI-Powered Chatbot",
		"Create a chatbot using natural language processing to answer customer service queries.",
	},
	{
		"Cloud Infrastructure Deployment",
		"Design and deploy a scalable cloud infrastructure using AWS or Azure with load balancing and auto-scaling.",
	},
}

// Bootstrap brings the store to a servable state: it verifies connectivity,
// applies pending migrations, and seeds default data. Safe to run
// repeatedly; seeding is idempotent against existing rows.
func Bootstrap(ctx context.Context, db *sql.DB, cfg config.Config) error {
	if err := Ping(ctx, db); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(cfg); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := Seed(ctx, db); err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	return nil
}

// BootstrapWithRetry runs Bootstrap up to cfg.Bootstrap.MaxAttempts times
// with a fixed delay between attempts. It returns the last error on
// exhaustion; the caller decides whether to keep serving in a not-ready
// state.
func BootstrapWithRetry(ctx context.Context, db *sql.DB, cfg config.Config) error {
	attempts := cfg.Bootstrap.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		log.Printf("bootstrapping database (attempt %d/%d)", attempt, attempts)
		if err = Bootstrap(ctx, db, cfg); err == nil {
			return nil
		}
		log.Printf("database bootstrap failed: %v", err)

		if attempt < attempts {
			select {
			case <-time.After(cfg.Bootstrap.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

// Migrate applies all pending up migrations from the configured source.
func Migrate(cfg config.Config) error {
	migrator, err := migrate.New(cfg.MigrationsURL, PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Seed inserts the default accounts, the sample student roster, and the
// sample projects with their team memberships inside a single transaction.
// Existing users are left untouched and sample projects are only created
// while the projects table is empty, so running it twice produces no
// duplicates.
func Seed(ctx context.Context, db *sql.DB) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertUser = `
		INSERT INTO users (username, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (username) DO NOTHING`

	if _, err := tx.ExecContext(ctx, insertUser, seedInstructorUsername, string(hash), "instructor"); err != nil {
		return err
	}
	for _, username := range seedStudents {
		if _, err := tx.ExecContext(ctx, insertUser, username, string(hash), "student"); err != nil {
			return err
		}
	}

	var projectCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects`).Scan(&projectCount); err != nil {
		return err
	}

	if projectCount == 0 {
		const insertProject = `
			INSERT INTO projects (title, description, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())
			RETURNING id`
		// Every sample team includes the default student plus a rotating
		// pair from the roster.
		const insertMember = `
			INSERT INTO project_members (project_id, user_id)
			SELECT $1, id FROM users WHERE username = $2
			ON CONFLICT DO NOTHING`

		for i, project := range seedProjects {
			var projectID int
			if err := tx.QueryRowContext(ctx, insertProject, project.title, project.description).Scan(&projectID); err != nil {
				return err
			}

			members := []string{
				seedStudentUsername,
				seedStudents[1+i%(len(seedStudents)-1)],
				seedStudents[1+(i+1)%(len(seedStudents)-1)],
			}
			for _, username := range members {
				if _, err := tx.ExecContext(ctx, insertMember, projectID, username); err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit()
}
