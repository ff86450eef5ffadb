package services

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"collabdeck/internal/models"
)

func TestEnsureMembershipIsIdempotent(t *testing.T) {
	users, permissions, _, presence := newTestServices(t)

	pres, err := users.CreatePresentation("Demo", "alice")
	if err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}

	if err := permissions.EnsureMembership(pres.ID, "bob"); err != nil {
		t.Fatalf("EnsureMembership: %v", err)
	}

	// Grant bob edit rights, then re-ensure: the existing row's flags must
	// survive
	changed, err := permissions.SetEditPermission(pres.ID, "alice", "bob", true)
	if err != nil {
		t.Fatalf("SetEditPermission: %v", err)
	}
	assert.Equal(t, true, changed)

	if err := permissions.EnsureMembership(pres.ID, "bob"); err != nil {
		t.Fatalf("EnsureMembership again: %v", err)
	}

	canEdit, err := permissions.HasEditPermission(pres.ID, "bob")
	if err != nil {
		t.Fatalf("HasEditPermission: %v", err)
	}
	assert.Equal(t, true, canEdit)

	presence.Join(pres.ID, "bob", "conn-b")
	snapshot, err := permissions.GetPermissions(pres.ID)
	if err != nil {
		t.Fatalf("GetPermissions: %v", err)
	}
	assert.Equal(t, 1, len(snapshot))
	assert.Equal(t, "bob", snapshot[0].Username)
}

func TestCreatorMembershipHasOwnerAndEdit(t *testing.T) {
	users, permissions, _, _ := newTestServices(t)

	pres, err := users.CreatePresentation("Demo", "alice")
	if err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}

	isOwner, err := permissions.IsOwner(pres.ID, "alice")
	if err != nil {
		t.Fatalf("IsOwner: %v", err)
	}
	assert.Equal(t, true, isOwner)

	canEdit, err := permissions.HasEditPermission(pres.ID, "alice")
	if err != nil {
		t.Fatalf("HasEditPermission: %v", err)
	}
	assert.Equal(t, true, canEdit)
}

func TestSnapshotReportsOnlyPresentUsers(t *testing.T) {
	users, permissions, _, presence := newTestServices(t)

	pres, err := users.CreatePresentation("Demo", "alice")
	if err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}
	if err := permissions.EnsureMembership(pres.ID, "bob"); err != nil {
		t.Fatalf("EnsureMembership: %v", err)
	}

	// Nobody connected: empty snapshot despite durable rows
	snapshot, err := permissions.GetPermissions(pres.ID)
	if err != nil {
		t.Fatalf("GetPermissions: %v", err)
	}
	assert.Equal(t, 0, len(snapshot))

	presence.Join(pres.ID, "alice", "conn-a")
	presence.Join(pres.ID, "bob", "conn-b")

	snapshot, err = permissions.GetPermissions(pres.ID)
	if err != nil {
		t.Fatalf("GetPermissions: %v", err)
	}
	assert.Equal(t, []models.Permission{
		{Username: "alice", CanEdit: true, IsOwner: true},
		{Username: "bob", CanEdit: false, IsOwner: false},
	}, snapshot)

	// Departure drops the user from the snapshot but keeps the row
	presence.Leave(pres.ID, "bob")
	snapshot, err = permissions.GetPermissions(pres.ID)
	if err != nil {
		t.Fatalf("GetPermissions: %v", err)
	}
	assert.Equal(t, 1, len(snapshot))
	assert.Equal(t, "alice", snapshot[0].Username)

	member, err := permissions.HasMembership(pres.ID, "bob")
	if err != nil {
		t.Fatalf("HasMembership: %v", err)
	}
	assert.Equal(t, true, member)
}

func TestSetEditPermissionRequiresOwner(t *testing.T) {
	users, permissions, _, _ := newTestServices(t)

	pres, err := users.CreatePresentation("Demo", "alice")
	if err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}
	if err := permissions.EnsureMembership(pres.ID, "bob"); err != nil {
		t.Fatalf("EnsureMembership bob: %v", err)
	}
	if err := permissions.EnsureMembership(pres.ID, "carol"); err != nil {
		t.Fatalf("EnsureMembership carol: %v", err)
	}

	// A non-owner's grant attempt changes nothing and signals no change
	changed, err := permissions.SetEditPermission(pres.ID, "bob", "carol", true)
	if err != nil {
		t.Fatalf("SetEditPermission: %v", err)
	}
	assert.Equal(t, false, changed)

	canEdit, err := permissions.HasEditPermission(pres.ID, "carol")
	if err != nil {
		t.Fatalf("HasEditPermission: %v", err)
	}
	assert.Equal(t, false, canEdit)

	// The owner's grant applies
	changed, err = permissions.SetEditPermission(pres.ID, "alice", "carol", true)
	if err != nil {
		t.Fatalf("SetEditPermission: %v", err)
	}
	assert.Equal(t, true, changed)

	canEdit, err = permissions.HasEditPermission(pres.ID, "carol")
	if err != nil {
		t.Fatalf("HasEditPermission: %v", err)
	}
	assert.Equal(t, true, canEdit)

	// Revocation works the same way
	changed, err = permissions.SetEditPermission(pres.ID, "alice", "carol", false)
	if err != nil {
		t.Fatalf("SetEditPermission revoke: %v", err)
	}
	assert.Equal(t, true, changed)

	canEdit, err = permissions.HasEditPermission(pres.ID, "carol")
	if err != nil {
		t.Fatalf("HasEditPermission: %v", err)
	}
	assert.Equal(t, false, canEdit)
}

func TestSetEditPermissionUnknownTarget(t *testing.T) {
	users, permissions, _, _ := newTestServices(t)

	pres, err := users.CreatePresentation("Demo", "alice")
	if err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}

	changed, err := permissions.SetEditPermission(pres.ID, "alice", "nobody", true)
	if err != nil {
		t.Fatalf("SetEditPermission: %v", err)
	}
	assert.Equal(t, false, changed)
}

func TestPresentAccessChecks(t *testing.T) {
	users, permissions, _, _ := newTestServices(t)

	pres, err := users.CreatePresentation("Demo", "alice")
	if err != nil {
		t.Fatalf("CreatePresentation: %v", err)
	}
	if err := permissions.EnsureMembership(pres.ID, "bob"); err != nil {
		t.Fatalf("EnsureMembership: %v", err)
	}

	// Not in presenting mode yet
	err = users.CheckPresentAccess(pres.ID, "alice")
	assert.NotEqual(t, nil, err)

	// Only the owner can enable the mode
	err = users.SetPresentingMode(pres.ID, "bob", true)
	assert.NotEqual(t, nil, err)

	if err := users.SetPresentingMode(pres.ID, "alice", true); err != nil {
		t.Fatalf("SetPresentingMode: %v", err)
	}

	assert.Equal(t, nil, users.CheckPresentAccess(pres.ID, "alice"))
	assert.NotEqual(t, nil, users.CheckPresentAccess(pres.ID, "bob"))

	// Disabling the mode revokes access again, even for the owner
	if err := users.SetPresentingMode(pres.ID, "alice", false); err != nil {
		t.Fatalf("SetPresentingMode off: %v", err)
	}
	assert.NotEqual(t, nil, users.CheckPresentAccess(pres.ID, "alice"))
}
