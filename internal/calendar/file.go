package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lifely/lifely/internal/models"
)

// LoadJSON decodes provider-shaped events. Both a bare array and an
// events.list response ({"items": [...]}) are accepted.
func LoadJSON(r io.Reader) ([]models.RawEvent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty events file")
	}

	if data[0] == '[' {
		var events []models.RawEvent
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		return events, nil
	}

	var page struct {
		Items []models.RawEvent `json:"items"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return page.Items, nil
}

// SaveJSON writes events to path as an indented array, creating the parent
// directory.
func SaveJSON(path string, events []models.RawEvent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

// RawEventsPath is where fetched events for year are kept under dataDir.
func RawEventsPath(dataDir string, year int) string {
	return filepath.Join(dataDir, fmt.Sprintf("raw_events_%d.json", year))
}

// FileSource reads events from a .json or .ics file. The year only bounds
// recurrence expansion of .ics series; callers filter after normalization.
type FileSource struct {
	Path string
}

// Name implements Source.
func (s FileSource) Name() string {
	return "file:" + filepath.Base(s.Path)
}

// Fetch implements Source.
func (s FileSource) Fetch(_ context.Context, year int) ([]models.RawEvent, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(s.Path), ".ics") {
		return ParseICS(f, year)
	}
	return LoadJSON(f)
}

// CachedSource serves events from the raw events file under DataDir and
// otherwise fetches from Source and writes the file.
type CachedSource struct {
	Source  Source
	DataDir string
	Refresh bool
}

// Name implements Source.
func (s CachedSource) Name() string {
	return s.Source.Name()
}

// Fetch implements Source.
func (s CachedSource) Fetch(ctx context.Context, year int) ([]models.RawEvent, error) {
	path := RawEventsPath(s.DataDir, year)
	if !s.Refresh {
		if events, err := (FileSource{Path: path}).Fetch(ctx, year); err == nil {
			return events, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	events, err := s.Source.Fetch(ctx, year)
	if err != nil {
		return nil, err
	}
	if err := SaveJSON(path, events); err != nil {
		return nil, err
	}
	return events, nil
}
