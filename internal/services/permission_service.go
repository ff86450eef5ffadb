package services

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"collabdeck/internal/models"
)

// PermissionService reads and writes durable membership rows and computes
// the permission snapshot for currently connected users
type PermissionService struct {
	database *sql.DB
	presence *PresenceRegistry
	users    *UserService
}

// NewPermissionService creates a new permission service
func NewPermissionService(database *sql.DB, presence *PresenceRegistry, users *UserService) *PermissionService {
	return &PermissionService{
		database: database,
		presence: presence,
		users:    users,
	}
}

// EnsureMembership upserts a default membership row for a user on a
// presentation. An existing row's flags are never altered.
func (ps *PermissionService) EnsureMembership(presentationID int, username string) error {
	user, err := ps.users.EnsureUser(username)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = ps.database.Exec(
		`INSERT OR IGNORE INTO user_presentations (user_id, presentation_id, can_edit, is_owner, created_at, modified_at)
		 VALUES (?, ?, 0, 0, ?, ?)`,
		user.ID, presentationID, now, now)
	if err != nil {
		return fmt.Errorf("failed to ensure membership: %w", err)
	}
	return nil
}

// GetPermissions returns the permission snapshot for the users currently
// present on a presentation, ordered by username. Durable flags of absent
// users are preserved in storage but not reported.
func (ps *PermissionService) GetPermissions(presentationID int) ([]models.Permission, error) {
	usernames := ps.presence.List(presentationID)
	if len(usernames) == 0 {
		return []models.Permission{}, nil
	}

	placeholders := strings.Repeat("?,", len(usernames))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(usernames)+1)
	args = append(args, presentationID)
	for _, username := range usernames {
		args = append(args, username)
	}

	query := fmt.Sprintf(
		`SELECT u.username, up.can_edit, up.is_owner
		 FROM user_presentations up
		 JOIN users u ON u.id = up.user_id
		 WHERE up.presentation_id = ? AND u.username IN (%s)
		 ORDER BY u.username`, placeholders)

	rows, err := ps.database.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	permissions := make([]models.Permission, 0, len(usernames))
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.Username, &p.CanEdit, &p.IsOwner); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}

	return permissions, rows.Err()
}

// SetEditPermission changes a user's canEdit flag. The acting user must
// own the presentation; the claim is verified server-side and the call is
// a silent no-op when it does not hold. Returns true if a row was changed.
func (ps *PermissionService) SetEditPermission(presentationID int, actingUsername, targetUsername string, canEdit bool) (bool, error) {
	owner, err := ps.IsOwner(presentationID, actingUsername)
	if err != nil {
		return false, err
	}
	if !owner {
		log.Printf("Rejected permission change on presentation %d: %s is not the owner", presentationID, actingUsername)
		return false, nil
	}

	result, err := ps.database.Exec(
		`UPDATE user_presentations SET can_edit = ?, modified_at = ?
		 WHERE presentation_id = ?
		   AND user_id = (SELECT id FROM users WHERE username = ?)`,
		canEdit, time.Now().UTC(), presentationID, targetUsername)
	if err != nil {
		return false, fmt.Errorf("failed to update edit permission: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	log.Printf("Edit permission for %s on presentation %d set to %v by %s", targetUsername, presentationID, canEdit, actingUsername)
	return true, nil
}

// HasEditPermission reports whether a user's membership carries canEdit
func (ps *PermissionService) HasEditPermission(presentationID int, username string) (bool, error) {
	var canEdit bool
	err := ps.database.QueryRow(
		`SELECT up.can_edit FROM user_presentations up
		 JOIN users u ON u.id = up.user_id
		 WHERE up.presentation_id = ? AND u.username = ?`,
		presentationID, username).Scan(&canEdit)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query edit permission: %w", err)
	}
	return canEdit, nil
}

// IsOwner reports whether a user's membership carries isOwner
func (ps *PermissionService) IsOwner(presentationID int, username string) (bool, error) {
	var isOwner bool
	err := ps.database.QueryRow(
		`SELECT up.is_owner FROM user_presentations up
		 JOIN users u ON u.id = up.user_id
		 WHERE up.presentation_id = ? AND u.username = ?`,
		presentationID, username).Scan(&isOwner)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query ownership: %w", err)
	}
	return isOwner, nil
}

// HasMembership reports whether any membership row exists for the user
func (ps *PermissionService) HasMembership(presentationID int, username string) (bool, error) {
	var one int
	err := ps.database.QueryRow(
		`SELECT 1 FROM user_presentations up
		 JOIN users u ON u.id = up.user_id
		 WHERE up.presentation_id = ? AND u.username = ?`,
		presentationID, username).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query membership: %w", err)
	}
	return true, nil
}
