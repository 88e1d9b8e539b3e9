package books

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/dvloznov/bookkeeper/internal/storage"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
)

// Setting keys in settings.xml.
const (
	KeyMaximizeWindow = "maximize_window"
	KeyAutoSave       = "auto_save"
	KeySaveOnClose    = "save_on_close"
	KeyMinimizeToTray = "minimize_to_tray"
)

// Settings are the user preferences.
type Settings struct {
	MaximizeWindow bool `json:"maximize_window"`
	AutoSave       bool `json:"auto_save"`
	SaveOnClose    bool `json:"save_on_close"`
	MinimizeToTray bool `json:"minimize_to_tray"`

	// keys this version does not know about, written back unchanged
	extra []xmlcodec.Setting
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{}
}

func (s *Settings) fields() []struct {
	key string
	val *bool
} {
	return []struct {
		key string
		val *bool
	}{
		{KeyMaximizeWindow, &s.MaximizeWindow},
		{KeyAutoSave, &s.AutoSave},
		{KeySaveOnClose, &s.SaveOnClose},
		{KeyMinimizeToTray, &s.MinimizeToTray},
	}
}

// Set changes the setting named key. Values are parsed with
// strconv.ParseBool.
func (s *Settings) Set(key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("Set: %s: %w", key, err)
	}
	for _, f := range s.fields() {
		if f.key == key {
			*f.val = b
			return nil
		}
	}
	return fmt.Errorf("Set: unknown setting %q", key)
}

func settingsFromPairs(pairs []xmlcodec.Setting) Settings {
	s := DefaultSettings()
	known := make(map[string]*bool)
	for _, f := range s.fields() {
		known[f.key] = f.val
	}
	for _, p := range pairs {
		if v, ok := known[p.Key]; ok {
			*v = p.Value == "true"
			continue
		}
		s.extra = append(s.extra, p)
	}
	return s
}

func (s Settings) pairs() []xmlcodec.Setting {
	var out []xmlcodec.Setting
	for _, f := range s.fields() {
		out = append(out, xmlcodec.Setting{Key: f.key, Value: strconv.FormatBool(*f.val)})
	}
	return append(out, s.extra...)
}

// SettingsStore loads and saves Settings in a document of its own.
type SettingsStore struct {
	mu      sync.Mutex
	store   storage.Store
	current Settings
}

// NewSettingsStore returns a store holding the default settings until Load.
func NewSettingsStore(store storage.Store) *SettingsStore {
	return &SettingsStore{store: store, current: DefaultSettings()}
}

// Load reads the settings, creating the document with defaults when it is
// missing.
func (s *SettingsStore) Load(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.store.Exists(ctx)
	if err != nil {
		return s.current, fmt.Errorf("Load settings: %w", err)
	}
	if !ok {
		s.current = DefaultSettings()
		if err := s.write(ctx); err != nil {
			return s.current, err
		}
		return s.current, nil
	}

	data, err := s.store.ReadAll(ctx)
	if err != nil {
		return s.current, fmt.Errorf("Load settings: %w", err)
	}
	doc, err := xmlcodec.NewDecoder().Decode(bytes.NewReader(data))
	if err != nil {
		return s.current, fmt.Errorf("Load settings: %s: %w", s.store.Location(), err)
	}
	s.current = settingsFromPairs(doc.Settings)
	return s.current, nil
}

// Get returns the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update applies fn to the settings and writes them immediately.
func (s *SettingsStore) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	next.extra = append([]xmlcodec.Setting(nil), s.current.extra...)
	if err := fn(&next); err != nil {
		return s.current, err
	}

	prev := s.current
	s.current = next
	if err := s.write(ctx); err != nil {
		s.current = prev
		return s.current, err
	}
	return s.current, nil
}

func (s *SettingsStore) write(ctx context.Context) error {
	var buf bytes.Buffer
	if err := xmlcodec.NewEncoder().Encode(&buf, nil, s.current.pairs()); err != nil {
		return fmt.Errorf("Save settings: %w", err)
	}
	if err := s.store.WriteAll(ctx, buf.Bytes()); err != nil {
		return fmt.Errorf("Save settings: %w", err)
	}
	return nil
}
