package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"collabdeck/internal/models"
)

// Canonical content of a freshly created slide: an empty scene
const EmptySlideContent = "[]"

// UserService manages users, presentations and the presenting-mode flag
type UserService struct {
	database *sql.DB
}

// NewUserService creates a new user service
func NewUserService(database *sql.DB) *UserService {
	return &UserService{
		database: database,
	}
}

// EnsureUser returns the user with the given username, creating it lazily
// on first sight. Usernames are self-declared, trust-on-claim strings.
func (us *UserService) EnsureUser(username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	user, err := us.getUserByUsername(username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	// Tolerate a concurrent insert of the same username
	_, err = us.database.Exec(
		`INSERT OR IGNORE INTO users (username, created_at) VALUES (?, ?)`,
		username, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return us.getUserByUsername(username)
}

func (us *UserService) getUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := us.database.QueryRow(
		`SELECT id, username, created_at FROM users WHERE username = ?`,
		username).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// CreatePresentation creates a presentation with one empty first slide and
// an owner membership for the creator
func (us *UserService) CreatePresentation(title, creatorUsername string) (*models.Presentation, error) {
	user, err := us.EnsureUser(creatorUsername)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := us.database.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO presentations (title, is_present_mode, created_at, modified_at) VALUES (?, 0, ?, ?)`,
		title, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert presentation: %w", err)
	}
	presID64, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get presentation id: %w", err)
	}
	presID := int(presID64)

	// Seed the sequence with one empty slide at position 0, version 0
	_, err = tx.Exec(
		`INSERT INTO slides (presentation_id, position, content, version, created_at, modified_at)
		 VALUES (?, 0, ?, 0, ?, ?)`,
		presID, EmptySlideContent, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert first slide: %w", err)
	}

	// The creator is the sole owner and starts with edit rights
	_, err = tx.Exec(
		`INSERT INTO user_presentations (user_id, presentation_id, can_edit, is_owner, created_at, modified_at)
		 VALUES (?, ?, 1, 1, ?, ?)`,
		user.ID, presID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit presentation: %w", err)
	}

	log.Printf("Presentation created: id=%d, title=%q, owner=%s", presID, title, creatorUsername)

	return &models.Presentation{
		ID:         presID,
		Title:      title,
		CreatedAt:  now,
		ModifiedAt: now,
	}, nil
}

// GetPresentation returns a presentation by id
func (us *UserService) GetPresentation(presentationID int) (*models.Presentation, error) {
	var pres models.Presentation
	err := us.database.QueryRow(
		`SELECT id, title, is_present_mode, created_at, modified_at FROM presentations WHERE id = ?`,
		presentationID).Scan(&pres.ID, &pres.Title, &pres.IsPresentMode, &pres.CreatedAt, &pres.ModifiedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("presentation %d: %w", presentationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query presentation: %w", err)
	}
	return &pres, nil
}

// PresentationExists reports whether a presentation id is known
func (us *UserService) PresentationExists(presentationID int) (bool, error) {
	var one int
	err := us.database.QueryRow(
		`SELECT 1 FROM presentations WHERE id = ?`, presentationID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query presentation: %w", err)
	}
	return true, nil
}

// ListPresentations returns the catalog rows: title, upload date, author
// (the owner's username) and whether the requesting username owns it
func (us *UserService) ListPresentations(requestingUsername string) ([]*models.PresentationSummary, error) {
	rows, err := us.database.Query(
		`SELECT p.id, p.title, p.created_at,
		        COALESCE((SELECT u.username FROM user_presentations up
		                  JOIN users u ON u.id = up.user_id
		                  WHERE up.presentation_id = p.id AND up.is_owner = 1
		                  ORDER BY up.id LIMIT 1), ''),
		        EXISTS(SELECT 1 FROM user_presentations up
		               JOIN users u ON u.id = up.user_id
		               WHERE up.presentation_id = p.id AND up.is_owner = 1 AND u.username = ?)
		 FROM presentations p
		 ORDER BY p.id`,
		requestingUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to query presentations: %w", err)
	}
	defer rows.Close()

	var summaries []*models.PresentationSummary
	for rows.Next() {
		var s models.PresentationSummary
		var createdAt time.Time
		if err := rows.Scan(&s.ID, &s.Title, &createdAt, &s.Author, &s.Grant); err != nil {
			return nil, fmt.Errorf("failed to scan presentation: %w", err)
		}
		s.Uploaded = createdAt.Format("2006-01-02")
		summaries = append(summaries, &s)
	}

	return summaries, rows.Err()
}

// SetPresentingMode sets the durable presenting-mode flag. Only the owner
// may change it.
func (us *UserService) SetPresentingMode(presentationID int, actingUsername string, enable bool) error {
	exists, err := us.PresentationExists(presentationID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("presentation %d: %w", presentationID, ErrNotFound)
	}

	owner, err := us.isOwner(presentationID, actingUsername)
	if err != nil {
		return err
	}
	if !owner {
		return fmt.Errorf("user %q is not the owner of presentation %d: %w", actingUsername, presentationID, ErrUnauthorized)
	}

	_, err = us.database.Exec(
		`UPDATE presentations SET is_present_mode = ?, modified_at = ? WHERE id = ?`,
		enable, time.Now().UTC(), presentationID)
	if err != nil {
		return fmt.Errorf("failed to update presenting mode: %w", err)
	}

	log.Printf("Presenting mode for presentation %d set to %v by %s", presentationID, enable, actingUsername)
	return nil
}

// CheckPresentAccess re-verifies, at the moment of the call, that the
// presentation is in presenting mode and that the caller owns it. Both
// conditions can change between mode entry and a later join, so callers
// must not cache the result.
func (us *UserService) CheckPresentAccess(presentationID int, username string) error {
	pres, err := us.GetPresentation(presentationID)
	if err != nil {
		return err
	}
	if !pres.IsPresentMode {
		return fmt.Errorf("presentation %d is not in presenting mode: %w", presentationID, ErrNotFound)
	}

	owner, err := us.isOwner(presentationID, username)
	if err != nil {
		return err
	}
	if !owner {
		return fmt.Errorf("user %q may not present presentation %d: %w", username, presentationID, ErrUnauthorized)
	}
	return nil
}

func (us *UserService) isOwner(presentationID int, username string) (bool, error) {
	var one int
	err := us.database.QueryRow(
		`SELECT 1 FROM user_presentations up
		 JOIN users u ON u.id = up.user_id
		 WHERE up.presentation_id = ? AND u.username = ? AND up.is_owner = 1`,
		presentationID, username).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query ownership: %w", err)
	}
	return true, nil
}
