package leveldata

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// IsLevelFile reports whether name has a level file extension.
func IsLevelFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", ".tmx":
		return true
	}
	return false
}

// Load reads a level file, choosing the decoder by extension.
// YAML levels without a name are named after the file.
func Load(fsys fs.FS, name string) (*Level, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".tmx":
		return LoadTMX(fsys, name)
	case ".yaml", ".yml":
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading level %s: %w", name, err)
		}
		var lvl Level
		if err := yaml.Unmarshal(data, &lvl); err != nil {
			return nil, fmt.Errorf("parsing level %s: %w", name, err)
		}
		if lvl.Name == "" {
			lvl.Name = stem(name)
		}
		if err := lvl.Validate(); err != nil {
			return nil, fmt.Errorf("level file %s: %w", name, err)
		}
		return &lvl, nil
	default:
		return nil, fmt.Errorf("level file %s: %w", name, ErrUnsupportedFormat)
	}
}

// LoadDir loads every level file in dir concurrently. Levels are returned sorted
// by name; the first failure cancels the rest.
func LoadDir(ctx context.Context, fsys fs.FS, dir string) ([]*Level, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading levels dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsLevelFile(e.Name()) {
			continue
		}
		files = append(files, path.Join(dir, e.Name()))
	}

	levels := make([]*Level, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lvl, err := Load(fsys, file)
			if err != nil {
				return err
			}
			levels[i] = lvl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(levels))
	for i, lvl := range levels {
		if prev, ok := seen[lvl.Name]; ok {
			return nil, fmt.Errorf("level %s declared in %s and %s: %w", lvl.Name, prev, files[i], ErrInvalidLevel)
		}
		seen[lvl.Name] = files[i]
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Name < levels[j].Name })

	slog.Info("levels loaded", "dir", dir, "count", len(levels))
	return levels, nil
}
