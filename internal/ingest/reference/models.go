package reference

import "strings"

// PlayerRecord is one player from the reference dataset.
type PlayerRecord struct {
	DisplayName  string            `json:"display_name"`
	FullName     string            `json:"full_name,omitempty"`
	PhotoCode    string            `json:"photo_code"`
	TeamBySeason map[string]string `json:"team_by_season"`
}

// Resolvable reports whether the record can produce a photo URL.
func (p PlayerRecord) Resolvable() bool {
	return strings.TrimSpace(p.PhotoCode) != "" && strings.TrimSpace(p.DisplayName) != ""
}

// csv column names of the code_dict dataset
const (
	colWebName    = "web_name"
	colFullName   = "fpl_name"
	colCode       = "code"
	teamColPrefix = "team_"
)

// bootstrapPayload is the shape of the FPL bootstrap-static document.
type bootstrapPayload struct {
	Elements []bootstrapElement `json:"elements"`
	Teams    []bootstrapTeam    `json:"teams"`
}

type bootstrapElement struct {
	WebName    string `json:"web_name"`
	FirstName  string `json:"first_name"`
	SecondName string `json:"second_name"`
	Code       int64  `json:"code"`
	Team       int    `json:"team"`
}

type bootstrapTeam struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
