package books

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/dvloznov/bookkeeper/internal/storage"
)

func TestSettingsLoadCreatesDefaults(t *testing.T) {
	store := storage.NewFileStore(t.TempDir(), "settings.xml")
	s := NewSettingsStore(store)

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.MaximizeWindow || got.AutoSave || got.SaveOnClose || got.MinimizeToTray {
		t.Errorf("defaults = %+v, want all false", got)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	for _, key := range []string{KeyMaximizeWindow, KeyAutoSave, KeySaveOnClose, KeyMinimizeToTray} {
		if !strings.Contains(string(data), "<"+key+">false</"+key+">") {
			t.Errorf("settings file missing %s:\n%s", key, data)
		}
	}
}

func TestSettingsUpdateWritesImmediately(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir(), "settings.xml")
	s := NewSettingsStore(store)
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := s.Update(ctx, func(st *Settings) error {
		st.AutoSave = true
		return st.Set(KeyMinimizeToTray, "true")
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded, err := NewSettingsStore(store).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.AutoSave || !reloaded.MinimizeToTray || reloaded.SaveOnClose || reloaded.MaximizeWindow {
		t.Errorf("reloaded = %+v", reloaded)
	}
}

func TestSettingsUnknownKeysPreserved(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir(), "settings.xml")
	doc := "<data><auto_save>true</auto_save><theme>dark</theme><save_on_close>yes</save_on_close></data>"
	if err := store.WriteAll(ctx, []byte(doc)); err != nil {
		t.Fatal(err)
	}

	s := NewSettingsStore(store)
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.AutoSave {
		t.Error("auto_save not read")
	}
	if got.SaveOnClose {
		t.Error(`"yes" read as true`)
	}

	if _, err := s.Update(ctx, func(st *Settings) error {
		st.MaximizeWindow = true
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	data, _ := os.ReadFile(store.Path())
	if !strings.Contains(string(data), "<theme>dark</theme>") {
		t.Errorf("unknown key dropped:\n%s", data)
	}
}

func TestSettingsSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{"auto save", KeyAutoSave, "true", false},
		{"numeric bool", KeySaveOnClose, "1", false},
		{"unknown key", "theme", "true", true},
		{"not a bool", KeyAutoSave, "ja", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			err := s.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettingsUpdateErrorKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir(), "settings.xml")
	s := NewSettingsStore(store)
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	boom := errors.New("boom")
	_, err := s.Update(ctx, func(st *Settings) error {
		st.AutoSave = true
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}
	if s.Get().AutoSave {
		t.Error("failed update changed the settings")
	}
}
