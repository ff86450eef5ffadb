package models

import "time"

// Presentation is a titled collection of ordered slides
type Presentation struct {
	ID            int       `json:"id"`
	Title         string    `json:"title"`
	IsPresentMode bool      `json:"isPresentMode"`
	CreatedAt     time.Time `json:"createdAt"`
	ModifiedAt    time.Time `json:"modifiedAt"`
}

// Slide is one versioned content blob within a presentation's ordered
// sequence. Position is the ordinal index inside the presentation; it is
// safe as the addressing key only because slides are never deleted or
// reordered.
type Slide struct {
	ID             int       `json:"id"`
	PresentationID int       `json:"presentationId"`
	Position       int       `json:"position"`
	Content        string    `json:"content"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	ModifiedAt     time.Time `json:"modifiedAt"`
}

// User is a self-declared identity, created lazily on first join or first
// presentation creation
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership is the durable per-user permission record for a presentation
type Membership struct {
	ID             int  `json:"id"`
	UserID         int  `json:"userId"`
	PresentationID int  `json:"presentationId"`
	CanEdit        bool `json:"canEdit"`
	IsOwner        bool `json:"isOwner"`
}

// Permission is one entry of the permission snapshot broadcast to the
// connected users of a presentation
type Permission struct {
	Username string `json:"username"`
	CanEdit  bool   `json:"canEdit"`
	IsOwner  bool   `json:"isOwner"`
}

// PresentationSummary is one row of the catalog listing
type PresentationSummary struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Uploaded string `json:"uploaded"`
	Author   string `json:"author"`
	Grant    bool   `json:"grant"`
}
