package directory

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Team is one selectable team as shown by the UI.
type Team struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	Entities     int    `json:"entities"`
	LastActivity string `json:"lastActivity,omitempty"`
}

// DefaultInsightTypes are the entity types counted toward a team's size.
var DefaultInsightTypes = []string{
	"Insight",
	"TransferablePattern",
	"WorkflowPattern",
	"Pattern",
	"Solution",
}

// Title returns the display form of a team identifier: "ui" -> "Ui",
// "data-eng" -> "Data-Eng".
func Title(name string) string {
	// A Caser keeps state between calls; one per call keeps Title safe for
	// concurrent use.
	return cases.Title(language.Und).String(strings.ToLower(name))
}

func fallback(def string) Team {
	display := Title(def)
	return Team{Name: def, DisplayName: display, Description: display + " team knowledge"}
}
