package interfaces

import "context"

// SessionSummary is one live session as the admin API lists it. Values are
// formatted the way clients see them, so non-finite values survive JSON.
type SessionSummary struct {
	ID        int               `json:"id"`
	Variables map[string]string `json:"variables"`
	Attached  int               `json:"attached"`
}

type SessionDetail struct {
	SessionSummary
	Rendered string `json:"rendered"`
}

type Stats struct {
	Sessions           int `json:"sessions"`
	SessionCapacity    int `json:"session_capacity"`
	Connections        int `json:"connections"`
	ConnectionCapacity int `json:"connection_capacity"`
}

// ListFilter narrows SessionService.List.
type ListFilter struct {
	// OnlyAttached keeps sessions with at least one client.
	OnlyAttached bool
}

type SessionService interface {
	List(ctx context.Context, filter ListFilter) []SessionSummary
	Get(ctx context.Context, id int) (SessionDetail, error)
	Delete(ctx context.Context, id int) error
	Stats(ctx context.Context) Stats
}
