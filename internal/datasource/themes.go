package datasource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/goldenkey/internal/logger"
)

// Theme table CSV header names. The export job writes the Korean labels;
// hand-maintained tables may use the English ones.
var (
	themeNameColumns  = []string{"종목명", "instrument_name"}
	themeThemeColumns = []string{"테마", "theme_text"}
)

// ThemeTable maps an instrument name to its free-text theme string.
// It is read-only once loaded.
type ThemeTable map[string]string

// Lookup returns the theme for name, or nil when the table has no entry.
func (t ThemeTable) Lookup(name string) *string {
	theme, ok := t[name]
	if !ok {
		return nil
	}
	return &theme
}

// LoadThemeTable reads the theme CSV at path. A missing or unreadable file
// yields an empty table so every lookup reports "absent".
func LoadThemeTable(path string, log logrus.FieldLogger) ThemeTable {
	log = logger.WithComponent(log, "themes").WithField("path", path)
	if path == "" {
		return ThemeTable{}
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("theme table not found, themes will be absent")
		} else {
			log.WithError(err).Warn("theme table unreadable")
		}
		return ThemeTable{}
	}
	defer f.Close()

	table, err := ReadThemeTable(f)
	if err != nil {
		log.WithError(err).Warn("theme table malformed")
		return ThemeTable{}
	}
	log.WithField("entries", len(table)).Debug("theme table loaded")
	return table
}

// ReadThemeTable parses theme CSV from r. The header row names the columns;
// a UTF-8 byte order mark on the first cell is ignored. Without a
// recognizable header the first two columns are used.
func ReadThemeTable(r io.Reader) (ThemeTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read theme csv: %w", err)
	}
	table := ThemeTable{}
	if len(records) == 0 {
		return table, nil
	}

	nameCol, themeCol := 0, 1
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	start := 0
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case slices.Contains(themeNameColumns, h):
			nameCol, start = i, 1
		case slices.Contains(themeThemeColumns, h):
			themeCol, start = i, 1
		}
	}

	for _, rec := range records[start:] {
		if len(rec) <= nameCol || len(rec) <= themeCol {
			continue
		}
		name := strings.TrimSpace(rec[nameCol])
		if name == "" {
			continue
		}
		table[name] = strings.TrimSpace(rec[themeCol])
	}
	return table, nil
}
