package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mattn/go-sqlite3"

	"collabdeck/internal/models"
)

// SlideService applies optimistically versioned updates to slide content
// and manages the ordered slide sequence of each presentation
type SlideService struct {
	database    *sql.DB
	permissions *PermissionService
}

// NewSlideService creates a new slide service
func NewSlideService(database *sql.DB, permissions *PermissionService) *SlideService {
	return &SlideService{
		database:    database,
		permissions: permissions,
	}
}

// GetSlide returns the slide at the given ordinal position. Fails with
// ErrNotFound if the ordinal is out of range or the presentation unknown.
func (ss *SlideService) GetSlide(presentationID, position int) (*models.Slide, error) {
	var slide models.Slide
	err := ss.database.QueryRow(
		`SELECT id, presentation_id, position, content, version, created_at, modified_at
		 FROM slides WHERE presentation_id = ? AND position = ?`,
		presentationID, position).Scan(
		&slide.ID,
		&slide.PresentationID,
		&slide.Position,
		&slide.Content,
		&slide.Version,
		&slide.CreatedAt,
		&slide.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("slide %d of presentation %d: %w", position, presentationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query slide: %w", err)
	}
	return &slide, nil
}

// UpdateResult describes the outcome of an applied (or suppressed) update
type UpdateResult struct {
	Position int
	Content  string
	Version  int
	// Applied is false when the proposed content was byte-identical to the
	// stored content and the write was suppressed
	Applied bool
}

// UpdateSlide applies an optimistically versioned content update.
//
// The version field is the sole concurrency guard: there is no lock held
// across the read-modify-write, so the final UPDATE re-checks the version
// and a concurrent writer loses with a ConflictError carrying the
// authoritative state.
func (ss *SlideService) UpdateSlide(presentationID, position int, proposedContent string, observedVersion int, actingUsername string) (*UpdateResult, error) {
	canEdit, err := ss.permissions.HasEditPermission(presentationID, actingUsername)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, fmt.Errorf("user %q may not edit presentation %d: %w", actingUsername, presentationID, ErrUnauthorized)
	}

	slide, err := ss.GetSlide(presentationID, position)
	if err != nil {
		return nil, err
	}

	// Redundant-save suppression: identical content is a no-op success
	if slide.Content == proposedContent {
		return &UpdateResult{
			Position: position,
			Content:  slide.Content,
			Version:  slide.Version,
			Applied:  false,
		}, nil
	}

	if slide.Version != observedVersion {
		return nil, &ConflictError{
			SlideID: position,
			Content: slide.Content,
			Version: slide.Version,
		}
	}

	// Compare-and-set on the version column; a concurrent commit between
	// the read above and this write leaves rowsAffected at zero
	result, err := ss.database.Exec(
		`UPDATE slides SET content = ?, version = version + 1, modified_at = ?
		 WHERE id = ? AND version = ?`,
		proposedContent, time.Now().UTC(), slide.ID, observedVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to update slide: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		authoritative, err := ss.GetSlide(presentationID, position)
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{
			SlideID: position,
			Content: authoritative.Content,
			Version: authoritative.Version,
		}
	}

	newVersion := observedVersion + 1
	log.Printf("Slide %d of presentation %d updated to version %d by %s", position, presentationID, newVersion, actingUsername)

	return &UpdateResult{
		Position: position,
		Content:  proposedContent,
		Version:  newVersion,
		Applied:  true,
	}, nil
}

// AddSlide appends an empty slide at the end of the ordered sequence and
// returns its position. Any joined member may add slides; ownership is not
// required.
func (ss *SlideService) AddSlide(presentationID int) (int, error) {
	exists, err := ss.presentationExists(presentationID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("presentation %d: %w", presentationID, ErrNotFound)
	}

	now := time.Now().UTC()
	// The unique (presentation_id, position) constraint makes concurrent
	// appends race-safe: the loser retries with the next position
	for attempt := 0; attempt < 3; attempt++ {
		var next int
		err = ss.database.QueryRow(
			`SELECT COALESCE(MAX(position), -1) + 1 FROM slides WHERE presentation_id = ?`,
			presentationID).Scan(&next)
		if err != nil {
			return 0, fmt.Errorf("failed to query next position: %w", err)
		}

		_, err = ss.database.Exec(
			`INSERT INTO slides (presentation_id, position, content, version, created_at, modified_at)
			 VALUES (?, ?, ?, 0, ?, ?)`,
			presentationID, next, EmptySlideContent, now, now)
		if err == nil {
			log.Printf("Slide appended to presentation %d at position %d", presentationID, next)
			return next, nil
		}

		// Only the lost position race is worth replaying; anything else is
		// final
		var sqliteErr sqlite3.Error
		if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
			return 0, fmt.Errorf("failed to append slide: %w", err)
		}
	}

	return 0, fmt.Errorf("failed to append slide: %w", err)
}

// CountSlides returns the number of slides in a presentation
func (ss *SlideService) CountSlides(presentationID int) (int, error) {
	var count int
	err := ss.database.QueryRow(
		`SELECT COUNT(*) FROM slides WHERE presentation_id = ?`,
		presentationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count slides: %w", err)
	}
	return count, nil
}

// ListSlides returns all slides of a presentation in sequence order
func (ss *SlideService) ListSlides(presentationID int) ([]*models.Slide, error) {
	rows, err := ss.database.Query(
		`SELECT id, presentation_id, position, content, version, created_at, modified_at
		 FROM slides WHERE presentation_id = ? ORDER BY position`,
		presentationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slides: %w", err)
	}
	defer rows.Close()

	var slides []*models.Slide
	for rows.Next() {
		var slide models.Slide
		err := rows.Scan(
			&slide.ID,
			&slide.PresentationID,
			&slide.Position,
			&slide.Content,
			&slide.Version,
			&slide.CreatedAt,
			&slide.ModifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slide: %w", err)
		}
		slides = append(slides, &slide)
	}

	return slides, rows.Err()
}

func (ss *SlideService) presentationExists(presentationID int) (bool, error) {
	var one int
	err := ss.database.QueryRow(
		`SELECT 1 FROM presentations WHERE id = ?`, presentationID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query presentation: %w", err)
	}
	return true, nil
}
