package main_test

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/brisk/pkg/config"
)

var briskBinaryPath string
var briskBinaryDir string

func TestMain(m *testing.M) {
	// Keep debug output and user state out of the tests.
	os.Unsetenv("BRISK_DEBUG")

	// Build the binary once for all tests
	if err := buildBriskOnce(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build brisk binary: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	if briskBinaryDir != "" {
		_ = os.RemoveAll(briskBinaryDir)
	}
	os.Exit(code)
}

func buildBriskOnce() error {
	tempDir, err := os.MkdirTemp("", "brisk-e2e-build-*")
	if err != nil {
		return err
	}
	briskBinaryDir = tempDir

	binName := "brisk"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	binPath := filepath.Join(tempDir, binName)

	cmd := exec.Command("go", "build", "-o", binPath, "../../cmd/brisk")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("go build failed: %v\n%s", err, out)
	}
	briskBinaryPath = binPath
	return nil
}

// fixture is a throwaway environment with its own config and state.
type fixture struct {
	root       string
	configPath string
	cfg        config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	return &fixture{
		root:       root,
		configPath: filepath.Join(root, "config.yaml"),
		cfg: config.Config{
			FavoritesPath: filepath.Join(root, "state", "favorites.yaml"),
			UsagePath:     filepath.Join(root, "state", "usage.json"),
		},
	}
}

// addDesktopDir declares a desktop backend and returns its directory.
func (f *fixture) addDesktopDir(t *testing.T, name string, rank int) string {
	t.Helper()
	dir := filepath.Join(f.root, name, "applications")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	f.cfg.Backends = append(f.cfg.Backends, config.BackendConfig{
		Kind: config.KindDesktop, Name: name, Rank: rank, Paths: []string{dir},
	})
	return dir
}

func (f *fixture) writeDesktop(t *testing.T, dir, id, name, extra string) {
	t.Helper()
	content := fmt.Sprintf("[Desktop Entry]\nType=Application\nName=%s\nExec=true\n%s", name, extra)
	if err := os.WriteFile(filepath.Join(dir, id), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// run writes the config and invokes brisk with args.
func (f *fixture) run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	data, err := yaml.Marshal(f.cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.configPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command(briskBinaryPath, append([]string{"-config", f.configPath}, args...)...)
	cmd.Env = append(os.Environ(), "NO_COLOR=1", "XDG_CURRENT_DESKTOP=")
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err = cmd.Run()
	return out.String(), strings.TrimSpace(errOut.String()), err
}
