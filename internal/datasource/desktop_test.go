package datasource

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/brisk/pkg/loader"
	"github.com/vanderheijden86/brisk/pkg/model"
	"github.com/vanderheijden86/brisk/pkg/testutil"
)

func app(id, name string) model.Entry {
	return model.Entry{ID: id, Name: name, Exec: strings.ToLower(strings.Fields(name)[0])}
}

func TestDesktopBackend_Activate(t *testing.T) {
	root := t.TempDir()
	testutil.WriteDesktopFile(t, root, app("editor.desktop", "Editor"))
	testutil.WriteDesktopFile(t, root, app("kde4/kate.desktop", "Kate"))
	testutil.WriteFile(t, root, "broken.desktop", "[Desktop Entry]\nType=Application\n")
	testutil.WriteFile(t, root, "docs.desktop", "[Desktop Entry]\nType=Link\nName=Docs\n")
	testutil.WriteFile(t, root, "README", "not a descriptor")

	var logs bytes.Buffer
	b := NewDesktopBackend("user", RankUser, []string{root}, loader.ParseOptions{})
	b.SetLogger(log.New(&logs, "", 0))

	entries, err := b.Activate(context.Background())
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	testutil.AssertIDs(t, testutil.IDs(entries), "editor.desktop", "kde4-kate.desktop")
	for _, e := range entries {
		if e.Source != "user" {
			t.Errorf("%s: Source = %q", e.ID, e.Source)
		}
	}

	if !strings.Contains(logs.String(), "broken.desktop") {
		t.Errorf("malformed descriptor should be logged, got %q", logs.String())
	}
	if strings.Contains(logs.String(), "docs.desktop") {
		t.Error("non-application descriptors are skipped quietly")
	}
}

func TestDesktopBackend_FirstRootWins(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	testutil.WriteDesktopFile(t, first, app("a.desktop", "First Copy"))
	testutil.WriteDesktopFile(t, second, app("a.desktop", "Second Copy"))
	testutil.WriteDesktopFile(t, second, app("b.desktop", "Only Second"))

	b := NewDesktopBackend("system", RankSystem, []string{first, second}, loader.ParseOptions{})
	entries, err := b.Activate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEntryCount(t, entries, 2)
	for _, e := range entries {
		if e.ID == "a.desktop" && e.Name != "First Copy" {
			t.Errorf("a.desktop from wrong root: %q", e.Name)
		}
	}
}

func TestDesktopBackend_MissingRootIsEmpty(t *testing.T) {
	b := NewDesktopBackend("user", RankUser, []string{filepath.Join(t.TempDir(), "nope")}, loader.ParseOptions{})
	entries, err := b.Activate(context.Background())
	if err != nil || len(entries) != 0 {
		t.Errorf("Activate = %v, %v; want empty, nil", entries, err)
	}
}

func TestDesktopBackend_UnreadableRootIsUnavailable(t *testing.T) {
	file := testutil.WriteFile(t, t.TempDir(), "not-a-dir", "x")
	b := NewDesktopBackend("user", RankUser, []string{file}, loader.ParseOptions{})

	_, err := b.Activate(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestDesktopBackend_PartialFailureStillScans(t *testing.T) {
	good := t.TempDir()
	testutil.WriteDesktopFile(t, good, app("a.desktop", "Alpha"))
	file := testutil.WriteFile(t, t.TempDir(), "not-a-dir", "x")

	b := NewDesktopBackend("system", RankSystem, []string{file, good}, loader.ParseOptions{})
	entries, err := b.Activate(context.Background())
	if err != nil {
		t.Fatalf("one bad root should not fail the backend: %v", err)
	}
	testutil.AssertEntryCount(t, entries, 1)
}

func TestDesktopBackend_Rescan(t *testing.T) {
	root := t.TempDir()
	testutil.WriteDesktopFile(t, root, app("a.desktop", "Alpha"))
	testutil.WriteDesktopFile(t, root, app("b.desktop", "Beta"))

	b := NewDesktopBackend("user", RankUser, []string{root}, loader.ParseOptions{})
	previous, err := b.Activate(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(root, "a.desktop")); err != nil {
		t.Fatal(err)
	}
	testutil.WriteDesktopFile(t, root, app("b.desktop", "Beta Two"))
	testutil.WriteDesktopFile(t, root, app("c.desktop", "Gamma"))

	d, err := b.Rescan(context.Background(), previous)
	if err != nil {
		t.Fatal(err)
	}
	if d.Rank != RankUser {
		t.Errorf("Rank = %d", d.Rank)
	}
	testutil.AssertIDs(t, testutil.IDs(d.Added), "b.desktop", "c.desktop")
	testutil.AssertIDs(t, d.Removed, "a.desktop")
}

func TestDesktopBackend_Canceled(t *testing.T) {
	root := t.TempDir()
	testutil.WriteDesktopFile(t, root, app("a.desktop", "Alpha"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewDesktopBackend("user", RankUser, []string{root}, loader.ParseOptions{})
	if _, err := b.Activate(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDesktopBackend_HiddenAndShowIn(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "kde-only.desktop", "[Desktop Entry]\nType=Application\nName=K\nExec=k\nOnlyShowIn=KDE;\n")
	testutil.WriteFile(t, root, "nodisplay.desktop", "[Desktop Entry]\nType=Application\nName=N\nExec=n\nNoDisplay=true\n")

	b := NewDesktopBackend("user", RankUser, []string{root}, loader.ParseOptions{Desktops: []string{"GNOME"}})
	entries, err := b.Activate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEntryCount(t, entries, 2)
	for _, e := range entries {
		if !e.Hidden {
			t.Errorf("%s should be hidden", e.ID)
		}
	}
}

func TestDesktopFileID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/usr/share/applications/firefox.desktop", "firefox.desktop"},
		{"/usr/share/applications/kde4/kate.desktop", "kde4-kate.desktop"},
		{"/usr/share/applications/a/b/c.desktop", "a-b-c.desktop"},
	}
	for _, tt := range tests {
		got, err := DesktopFileID("/usr/share/applications", tt.path)
		if err != nil || got != tt.want {
			t.Errorf("DesktopFileID(%s) = %q, %v; want %q", tt.path, got, err, tt.want)
		}
	}
}

func TestApplicationDirs(t *testing.T) {
	got := ApplicationDirs([]string{"/usr/local/share", "", "/usr/share"})
	testutil.AssertIDs(t, got, "/usr/local/share/applications", "/usr/share/applications")
}

func TestDesktopBackend_WatchPaths(t *testing.T) {
	roots := []string{"/a", "/b"}
	b := NewDesktopBackend("user", RankUser, roots, loader.ParseOptions{})
	var w Watchable = b
	paths := w.WatchPaths()
	paths[0] = "/mutated"
	testutil.AssertIDs(t, b.WatchPaths(), "/a", "/b")
}
