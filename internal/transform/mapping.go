package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
)

// MappingRepository resolves per-source field path overrides. Overrides let
// an operator redirect a canonical field to a different raw path without a
// code change, e.g. a WooCommerce store carrying the phone number in a
// custom meta field.
type MappingRepository interface {
	// Override returns the raw path configured for (source, entity, field),
	// or ok=false when the default path applies.
	Override(source v1.SourceType, entity, field string) (string, bool)
}

// mappingFile is the on-disk YAML shape. Each file holds the overrides for
// one (source, entity) pair.
type mappingFile struct {
	Source string            `yaml:"source"`
	Entity string            `yaml:"entity"`
	Fields map[string]string `yaml:"fields"`
}

var validEntities = map[string]bool{
	"customer": true,
	"product":  true,
	"order":    true,
}

// FileSystemMappingRepository loads field mapping overrides from *.yaml
// files in a directory. Mappings are loaded once at startup and cached in
// memory — no hot reload.
type FileSystemMappingRepository struct {
	dir       string
	overrides map[string]map[string]string // keyed by source/entity, then field
}

// NewFileSystemMappingRepository creates a repository and eagerly loads all
// mapping files from dir. A missing directory is valid (zero overrides).
func NewFileSystemMappingRepository(dir string) (*FileSystemMappingRepository, error) {
	repo := &FileSystemMappingRepository{
		dir:       dir,
		overrides: make(map[string]map[string]string),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemMappingRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mapping dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mapping path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading mapping dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading mapping file %s: %w", path, err)
		}

		var file mappingFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parsing mapping file %s: %w", path, err)
		}
		if file.Source == "" && file.Entity == "" {
			continue // skip empty / comment-only files
		}

		source := v1.SourceType(file.Source)
		if !source.Valid() {
			return fmt.Errorf("mapping file %s: unknown source %q", path, file.Source)
		}
		if !validEntities[file.Entity] {
			return fmt.Errorf("mapping file %s: unknown entity %q", path, file.Entity)
		}

		key := file.Source + "/" + file.Entity
		if _, exists := r.overrides[key]; exists {
			return fmt.Errorf("mapping file %s: duplicate mapping for %s (check multiple YAML files)", path, key)
		}

		fields := make(map[string]string, len(file.Fields))
		for field, rawPath := range file.Fields {
			if rawPath == "" {
				return fmt.Errorf("mapping file %s: field %q has an empty path", path, field)
			}
			fields[field] = rawPath
		}
		r.overrides[key] = fields
	}
	return nil
}

// Override returns the configured raw path for (source, entity, field).
func (r *FileSystemMappingRepository) Override(source v1.SourceType, entity, field string) (string, bool) {
	fields, ok := r.overrides[string(source)+"/"+entity]
	if !ok {
		return "", false
	}
	path, ok := fields[field]
	return path, ok
}

var _ MappingRepository = (*FileSystemMappingRepository)(nil)
