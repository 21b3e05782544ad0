package api

import (
	"github.com/memviz/memviz/server/internal/directory"
)

// ConfigResponse is the payload for GET /api/config.
type ConfigResponse struct {
	DataSource    string `json:"dataSource"`
	KnowledgeView string `json:"knowledgeView"`
}

// AvailableTeamsResponse is the payload for GET /api/available-teams.
type AvailableTeamsResponse struct {
	Available []directory.Team `json:"available"`
}

// SetTeamsRequest is the body of POST /api/teams.
type SetTeamsRequest struct {
	Teams []string `json:"teams"`
}

// SetTeamsResponse is the success payload for POST /api/teams.
type SetTeamsResponse struct {
	Success bool     `json:"success"`
	Teams   []string `json:"teams"`
	Message string   `json:"message"`
}

// errorResponse is the JSON error envelope. Success is only set by
// POST /api/teams.
type errorResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
