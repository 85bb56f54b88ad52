package reference

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/fortuna/headshot/internal/season"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseResult is what a dataset body produced.
type ParseResult struct {
	Records []PlayerRecord
	Dropped int
	Format  string
}

// Parse detects the body format and parses it. currentSeason is used as the
// team key for the JSON payload, which only carries the current team.
func Parse(body []byte, currentSeason string) (ParseResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ParseResult{}, errors.New("empty body")
	}
	if trimmed[0] == '{' {
		return ParseBootstrap(trimmed, currentSeason)
	}
	return ParseCSV(bytes.NewReader(trimmed))
}

// ParseCSV reads a header row followed by one player per row. Fields are
// mapped to header names by position; rows that fail to parse or lack a
// name or photo code are dropped.
func ParseCSV(r io.Reader) (ParseResult, error) {
	res := ParseResult{Format: "csv"}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return res, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.Dropped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("reading rows: %w", err)
		}

		rec, ok := recordFromRow(header, row)
		if !ok {
			res.Dropped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func recordFromRow(header, row []string) (PlayerRecord, bool) {
	rec := PlayerRecord{TeamBySeason: make(map[string]string)}
	for i, name := range header {
		if i >= len(row) {
			break
		}
		val := strings.TrimSpace(row[i])
		switch {
		case name == colWebName:
			rec.DisplayName = val
		case name == colFullName:
			rec.FullName = val
		case name == colCode:
			rec.PhotoCode = val
		case strings.HasPrefix(name, teamColPrefix):
			key, ok := season.Normalize(strings.TrimPrefix(name, teamColPrefix))
			if ok && val != "" {
				rec.TeamBySeason[key] = val
			}
		}
	}
	return rec, rec.Resolvable()
}

// ParseBootstrap joins elements to teams by numeric team id.
func ParseBootstrap(body []byte, currentSeason string) (ParseResult, error) {
	res := ParseResult{Format: "json"}

	var payload bootstrapPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return res, fmt.Errorf("decoding payload: %w", err)
	}

	teams := make(map[int]string, len(payload.Teams))
	for _, t := range payload.Teams {
		teams[t.ID] = t.Name
	}

	for _, el := range payload.Elements {
		rec := PlayerRecord{
			DisplayName:  strings.TrimSpace(el.WebName),
			FullName:     strings.TrimSpace(el.FirstName + " " + el.SecondName),
			TeamBySeason: make(map[string]string),
		}
		if el.Code > 0 {
			rec.PhotoCode = strconv.FormatInt(el.Code, 10)
		}
		if name, ok := teams[el.Team]; ok && name != "" {
			rec.TeamBySeason[currentSeason] = name
		}
		if !rec.Resolvable() {
			res.Dropped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}
