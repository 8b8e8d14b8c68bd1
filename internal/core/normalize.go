package core

import "strings"

// HiddenKeywords lists header substrings (lowercase) whose columns are never
// displayed. Matching is case-insensitive.
var HiddenKeywords = []string{
	"sport_id",
	"team_members",
	"team_name",
	"info",
	"result_code",
	"position_pre",
}

// headerRename maps a lowercase header substring to its display name.
type headerRename struct {
	match string
	name  string
}

// headerRenames is evaluated in order; the first contained substring wins.
var headerRenames = []headerRename{
	{match: "category", name: "Series"},
	{match: "first_name", name: "Name"},
	{match: "last_name", name: "Surname"},
	{match: "organization", name: "Club"},
	{match: "napat", name: "X"},
	{match: "result", name: "Result"},
	{match: "posit.", name: "Rank"},
}

// IsHiddenHeader reports whether a raw header matches the hide set.
func IsHiddenHeader(header string) bool {
	lower := strings.ToLower(header)
	for _, kw := range HiddenKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RenameHeader converts a raw header to its display name.
//
// Round headers come first: "part-3" becomes "S3" and "psum-3" becomes "P3",
// where the number is the text between the first and second dash. Otherwise
// the first matching entry of the rename table applies, and unmatched headers
// pass through unchanged.
func RenameHeader(header string) string {
	lower := strings.ToLower(header)

	switch {
	case strings.Contains(lower, "part-"):
		return "S" + dashToken(header)
	case strings.Contains(lower, "psum-"):
		return "P" + dashToken(header)
	}

	for _, r := range headerRenames {
		if strings.Contains(lower, r.match) {
			return r.name
		}
	}
	return header
}

// dashToken returns the segment after the first '-' up to the next one.
func dashToken(s string) string {
	parts := strings.Split(s, "-")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Normalize applies the hide and rename rules to a raw header row and filters
// the data rows down to the visible columns.
//
// Rows whose cells are all blank are dropped. A row shorter than the header
// simply yields fewer cells; cells beyond the header are discarded.
func Normalize(header []string, rows [][]string) Table {
	visible := make([]bool, len(header))
	headers := make([]string, 0, len(header))

	for i, h := range header {
		if IsHiddenHeader(h) {
			continue
		}
		visible[i] = true
		headers = append(headers, RenameHeader(h))
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}

		filtered := make([]string, 0, len(headers))
		for i, cell := range row {
			if i < len(visible) && visible[i] {
				filtered = append(filtered, cell)
			}
		}
		out = append(out, filtered)
	}

	return Table{Headers: headers, Rows: out}
}

// isBlankRow reports whether every cell is empty after trimming whitespace.
// A row with no cells is blank.
func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
