package reference

import (
	"strings"
	"testing"
)

const codeDict = `Web_Name,Code,FPL_Name,Team_2023-24,Team_2024-25
Salah,118748,Mohamed Salah,Liverpool,Liverpool
Son,85971,Heung-Min Son,Spurs,Tottenham
Broken,,No Code,Arsenal,Arsenal
Short
"Bad"quote,1,x,y,z
Haaland,223094,Erling Haaland,Man City,
`

func TestParseCSV(t *testing.T) {
	res, err := ParseCSV(strings.NewReader(codeDict))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3: %+v", len(res.Records), res.Records)
	}
	if res.Dropped != 3 {
		t.Errorf("dropped = %d, want 3", res.Dropped)
	}

	salah := res.Records[0]
	if salah.DisplayName != "Salah" || salah.PhotoCode != "118748" || salah.FullName != "Mohamed Salah" {
		t.Errorf("unexpected record: %+v", salah)
	}
	if got := salah.TeamBySeason["2024-2025"]; got != "Liverpool" {
		t.Errorf("2024-2025 team = %q, want Liverpool", got)
	}
	if got := res.Records[1].TeamBySeason["2023-2024"]; got != "Spurs" {
		t.Errorf("Son 2023-2024 team = %q, want Spurs", got)
	}

	haaland := res.Records[2]
	if _, ok := haaland.TeamBySeason["2024-2025"]; ok {
		t.Errorf("empty team cell should not create a season key: %+v", haaland.TeamBySeason)
	}
}

func TestParseCSVWindowsLineEndings(t *testing.T) {
	body := "Web_Name,Code,Team_2024-25\r\nSaka,223340,Arsenal\r\n"
	res, err := ParseCSV(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].TeamBySeason["2024-2025"] != "Arsenal" {
		t.Fatalf("unexpected records: %+v", res.Records)
	}
}

const bootstrapStatic = `{
  "teams": [{"id": 1, "name": "Arsenal"}, {"id": 12, "name": "Liverpool"}],
  "elements": [
    {"web_name": "Salah", "first_name": "Mohamed", "second_name": "Salah", "code": 118748, "team": 12},
    {"web_name": "Saka", "first_name": "Bukayo", "second_name": "Saka", "code": 223340, "team": 1},
    {"web_name": "Nobody", "code": 0, "team": 1},
    {"web_name": "Drifter", "code": 5, "team": 99}
  ]
}`

func TestParseBootstrap(t *testing.T) {
	res, err := Parse([]byte(bootstrapStatic), "2025-2026")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Format != "json" {
		t.Errorf("format = %q, want json", res.Format)
	}
	if len(res.Records) != 3 || res.Dropped != 1 {
		t.Fatalf("records=%d dropped=%d, want 3/1", len(res.Records), res.Dropped)
	}

	salah := res.Records[0]
	if salah.PhotoCode != "118748" || salah.TeamBySeason["2025-2026"] != "Liverpool" {
		t.Errorf("unexpected record: %+v", salah)
	}
	if salah.FullName != "Mohamed Salah" {
		t.Errorf("full name = %q", salah.FullName)
	}

	drifter := res.Records[2]
	if len(drifter.TeamBySeason) != 0 {
		t.Errorf("unknown team id should leave no team: %+v", drifter.TeamBySeason)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("   "), "2024-2025"); err == nil {
		t.Error("expected error for empty body")
	}
	if _, err := Parse([]byte("{not json"), "2024-2025"); err == nil {
		t.Error("expected error for invalid json")
	}
}
