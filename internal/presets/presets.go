package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IlyassOtmani/car-price-ml/internal/features"
	"github.com/IlyassOtmani/car-price-ml/internal/form"
)

var (
	// ErrNotFound is returned for unknown preset ids
	ErrNotFound = errors.New("preset not found")
	// ErrBuiltin is returned when modifying a built-in preset
	ErrBuiltin = errors.New("built-in presets cannot be changed")
	// ErrReadOnly is returned when no presets directory is configured
	ErrReadOnly = errors.New("saving presets is disabled")
)

// timestamps sort lexically in this layout
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Preset is a saved car configuration
type Preset struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Builtin   bool             `json:"builtin"`
	CreatedAt string           `json:"createdAt,omitempty"`
	Request   features.Request `json:"request"`
}

// Store serves the built-in examples and, when a directory is configured,
// user presets saved as one JSON file each.
type Store struct {
	builtin []Preset
	dir     string
}

// NewStore creates a preset store. An empty dir keeps the store read-only.
func NewStore(dir string, examples []form.Preset) (*Store, error) {
	s := &Store{dir: dir}
	for _, ex := range examples {
		s.builtin = append(s.builtin, Preset{ID: ex.ID, Title: ex.Title, Builtin: true, Request: ex.Request})
	}
	if dir == "" {
		return s, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create presets directory: %w", err)
	}
	return s, nil
}

// Writable reports whether user presets can be saved
func (s *Store) Writable() bool {
	return s.dir != ""
}

// List returns built-ins first, then saved presets newest first
func (s *Store) List() ([]Preset, error) {
	out := append([]Preset(nil), s.builtin...)
	if s.dir == "" {
		return out, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets directory: %w", err)
	}

	var saved []Preset
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		p, err := s.load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // skip unreadable presets
		}
		saved = append(saved, *p)
	}
	sort.SliceStable(saved, func(i, j int) bool {
		return saved[i].CreatedAt > saved[j].CreatedAt
	})
	return append(out, saved...), nil
}

// Get retrieves a preset by id
func (s *Store) Get(id string) (*Preset, error) {
	for i := range s.builtin {
		if s.builtin[i].ID == id {
			p := s.builtin[i]
			return &p, nil
		}
	}
	if s.dir == "" {
		return nil, ErrNotFound
	}
	return s.load(id)
}

// Create saves a new preset under a fresh id
func (s *Store) Create(title string, req features.Request) (*Preset, error) {
	if s.dir == "" {
		return nil, ErrReadOnly
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	p := &Preset{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: time.Now().UTC().Format(createdLayout),
		Request:   req,
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := os.WriteFile(s.path(p.ID), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write preset file: %w", err)
	}
	return p, nil
}

// Delete removes a saved preset
func (s *Store) Delete(id string) error {
	for _, b := range s.builtin {
		if b.ID == id {
			return ErrBuiltin
		}
	}
	if s.dir == "" {
		return ErrNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) load(id string) (*Preset, error) {
	// ids are uuids; anything else could escape the directory
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse preset: %w", err)
	}
	p.Builtin = false
	return &p, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
