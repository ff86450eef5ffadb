package handlers

import "collabdeck/internal/models"

// Client-to-server command names
const (
	CmdJoinPresentation      = "JoinPresentation"
	CmdUserDisconnect        = "UserDisconnect"
	CmdSetUserEditPermission = "SetUserEditPermission"
	CmdUpdateSlide           = "UpdateSlide"
	CmdGetSlide              = "GetSlide"
	CmdAddSlide              = "AddSlide"
	CmdLeavePresentation     = "LeavePresentation"
	CmdSetSlide              = "SetSlide"
	CmdEnterPresentMode      = "EnterPresentMode"
	CmdCheckPresentAccess    = "CheckPresentAccess"
)

// Server-to-client event names
const (
	EventUserListUpdated     = "UserListUpdated"
	EventSlideUpdated        = "SlideUpdated"
	EventSlideReceived       = "SlideReceived"
	EventSlidesCountReceived = "SlidesCountReceived"
	EventUpdateRejected      = "UpdateRejected"
	EventOnSlideChanged      = "OnSlideChanged"
	EventPresentModeChanged  = "PresentModeChanged"
	EventPresentAccess       = "PresentAccess"
	EventError               = "Error"
)

// Command is the client-to-server wire frame. The presentation id travels
// as a string and is parsed server-side; unused fields stay at their zero
// value.
type Command struct {
	Command        string `json:"command"`
	PresentationID string `json:"presentationId"`
	Username       string `json:"username,omitempty"`
	SlideID        int    `json:"slideId"`
	Content        string `json:"content,omitempty"`
	Version        int    `json:"version"`
	CanEdit        bool   `json:"canEdit"`
	Index          int    `json:"index"`
}

// SlidePayload carries slide state in SlideUpdated, SlideReceived and
// UpdateRejected events
type SlidePayload struct {
	SlideID int    `json:"slideId"`
	Content string `json:"content"`
	Version int    `json:"version"`
}

// CountPayload carries the slide count in SlidesCountReceived events
type CountPayload struct {
	Count int `json:"count"`
}

// IndexPayload carries the presenter's slide pointer in OnSlideChanged
// events
type IndexPayload struct {
	Index int `json:"index"`
}

// ErrorPayload is the directed failure reply
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PresentModePayload acknowledges a presenting-mode change
type PresentModePayload struct {
	PresentationID int  `json:"presentationId"`
	Enabled        bool `json:"enabled"`
}

// PresentAccessPayload is the CheckPresentAccess reply
type PresentAccessPayload struct {
	PresentationID int  `json:"presentationId"`
	Granted        bool `json:"granted"`
}

// Error codes used in ErrorPayload
const (
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeError        = "error"
)

// snapshotPayload is the UserListUpdated payload
type snapshotPayload struct {
	Users []models.Permission `json:"users"`
}
