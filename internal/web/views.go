package web

// views.go holds the helpers behind the templ components in views.templ.

//go:generate templ generate -f views.templ

import (
	"strings"

	"github.com/a-h/templ"

	"github.com/MrVeink/svr/internal/core"
)

const emptyStateText = "No data loaded. Please select a local file or connect to Google Sheets."

const (
	themeDark  = "dark"
	themeLight = "light"
)

// themeFor falls back to dark for unknown names.
func themeFor(name string) string {
	if strings.EqualFold(name, themeLight) {
		return themeLight
	}
	return themeDark
}

func otherTheme(name string) string {
	if name == themeLight {
		return themeDark
	}
	return themeLight
}

func themeToggleURL(name string) templ.SafeURL {
	return templ.SafeURL("?theme=" + otherTheme(name))
}

type pageData struct {
	Snapshot core.Snapshot
	Theme    string
	Version  string
}

// resultIndex is the result column, or -1 when the table has none.
func resultIndex(t core.Table) int {
	if i, ok := t.ResultColumn(); ok {
		return i
	}
	return -1
}

// cellAt pads short rows with empty cells.
func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
