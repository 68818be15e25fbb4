package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Archivos de migración: {version}_{name}.sql (ej: 0001_init.sql),
// embebidos en el binario desde migrations/postgres.

// ErrChecksumMismatch indica que una migración ya aplicada cambió en disco.
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

// MigrationExecutor es lo que el Migrator necesita del driver.
type MigrationExecutor interface {
	// EnsureTable crea schema_migrations si no existe.
	EnsureTable(ctx context.Context) error
	// Applied devuelve version -> checksum de lo ya aplicado.
	Applied(ctx context.Context) (map[int]string, error)
	// Apply corre el SQL y registra la versión en la misma transacción.
	Apply(ctx context.Context, m Migration) error
}

// Migration es un archivo de migración parseado.
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

type MigrationResult struct {
	Applied  []int
	Skipped  []int
	Failed   *int
	Duration time.Duration
}

type Migrator struct {
	fsys fs.FS
	dir  string
}

func NewMigrator(fsys fs.FS, dir string) *Migrator {
	return &Migrator{fsys: fsys, dir: dir}
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// ParseMigrations lee dir, ignora lo que no matchea el patrón y ordena por versión.
// Dos archivos con la misma versión son un error.
func (m *Migrator) ParseMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, m.dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.dir, err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := migrationFilePattern.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("bad version in %s: %w", e.Name(), err)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		body, err := fs.ReadFile(m.fsys, path.Join(m.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(body)
		out = append(out, Migration{
			Version:  version,
			Name:     match[2],
			SQL:      string(body),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run aplica en orden las migraciones pendientes. Si una ya aplicada tiene
// otro checksum no aplica nada y devuelve ErrChecksumMismatch.
func (m *Migrator) Run(ctx context.Context, exec MigrationExecutor) (*MigrationResult, error) {
	start := time.Now()
	result := &MigrationResult{}
	defer func() { result.Duration = time.Since(start) }()

	migrations, err := m.ParseMigrations()
	if err != nil {
		return result, err
	}
	if err := exec.EnsureTable(ctx); err != nil {
		return result, fmt.Errorf("creating schema_migrations: %w", err)
	}
	applied, err := exec.Applied(ctx)
	if err != nil {
		return result, fmt.Errorf("reading applied migrations: %w", err)
	}

	for _, mig := range migrations {
		if sum, ok := applied[mig.Version]; ok && sum != "" && sum != mig.Checksum {
			return result, fmt.Errorf("%w: %d_%s", ErrChecksumMismatch, mig.Version, mig.Name)
		}
	}

	for _, mig := range migrations {
		if _, ok := applied[mig.Version]; ok {
			result.Skipped = append(result.Skipped, mig.Version)
			continue
		}
		if err := exec.Apply(ctx, mig); err != nil {
			v := mig.Version
			result.Failed = &v
			return result, fmt.Errorf("applying migration %d_%s: %w", mig.Version, mig.Name, err)
		}
		result.Applied = append(result.Applied, mig.Version)
	}
	return result, nil
}
