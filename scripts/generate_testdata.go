//go:build ignore

// generate_testdata.go creates synthetic application directories for
// benchmarking discovery, merge, and search.
// Usage: go run scripts/generate_testdata.go
//
// Creates, per dataset, one directory per layer:
//
//	tests/testdata/benchmark/<name>/system/applications/*.desktop
//	tests/testdata/benchmark/<name>/user/applications/*.desktop
//	tests/testdata/benchmark/<name>/config.yaml
//
// The user layer overrides a random subset of the system ids, so loading a
// dataset exercises override-by-rank as well as raw parsing.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/brisk/pkg/config"
	"github.com/vanderheijden86/brisk/pkg/testutil"
)

type datasetSpec struct {
	name string
	size int
}

var datasets = []datasetSpec{
	{"small", 100},
	{"medium", 1000},
	{"large", 5000},
}

var layers = []struct {
	name string
	rank int
}{
	{"system", 10},
	{"user", 20},
}

func main() {
	outputDir := "tests/testdata/benchmark"

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d ids)...\n", ds.name, ds.size)

		gen := testutil.New(testutil.GeneratorConfig{
			Seed:       int64(ds.size), // Reproducible per-size
			IDPrefix:   "bench",
			HiddenRate: 0.05,
		})
		ranks := make([]int, len(layers))
		for i, l := range layers {
			ranks[i] = l.rank
		}
		deltas := gen.Layered(ranks, ds.size)

		root := filepath.Join(outputDir, ds.name)
		var cfg config.Config
		for i, l := range layers {
			dir := filepath.Join(root, l.name, "applications")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dir, err)
				os.Exit(1)
			}
			for _, e := range deltas[i].Added {
				path := filepath.Join(dir, e.ID)
				if err := os.WriteFile(path, []byte(testutil.DesktopFile(e)), 0o644); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
					os.Exit(1)
				}
			}
			abs, _ := filepath.Abs(dir)
			cfg.Backends = append(cfg.Backends, config.BackendConfig{
				Kind:  config.KindDesktop,
				Name:  l.name,
				Rank:  l.rank,
				Paths: []string{abs},
			})
			fmt.Printf("  %s: %d descriptors\n", l.name, len(deltas[i].Added))
		}

		state, _ := filepath.Abs(filepath.Join(root, "state"))
		cfg.FavoritesPath = filepath.Join(state, "favorites.yaml")
		cfg.UsagePath = filepath.Join(state, "usage.json")
		if err := config.SaveTo(cfg, filepath.Join(root, "config.yaml")); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("\nDone! Run: brisk -config", filepath.Join(outputDir, "medium", "config.yaml"), "-status -metrics")
}
