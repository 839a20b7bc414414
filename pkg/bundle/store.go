package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when a requested bundle version does not exist.
var ErrNotFound = errors.New("bundle not found")

// Store persists published bundles. Bundles are write-once: publishing an
// existing version is an error, and nothing ever rewrites a stored bundle.
type Store interface {
	// Put stores a new bundle version and marks it latest.
	Put(ctx context.Context, b *Bundle) error

	// Get retrieves a specific bundle version.
	Get(ctx context.Context, version string) (*Bundle, error)

	// Latest retrieves the most recently published bundle.
	Latest(ctx context.Context) (*Bundle, error)

	// Versions lists all published versions, oldest first.
	Versions(ctx context.Context) ([]string, error)
}

// FilesystemStore keeps bundles as JSON files in a directory, with a "latest"
// pointer file updated atomically by rename.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates the directory if needed.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bundle directory: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) bundlePath(version string) string {
	return filepath.Join(s.root, "bundle-"+version+".json")
}

func (s *FilesystemStore) latestPath() string {
	return filepath.Join(s.root, "latest")
}

// Put stores a new bundle version and marks it latest.
func (s *FilesystemStore) Put(ctx context.Context, b *Bundle) error {
	if b == nil {
		return ErrNilBundle
	}
	path := s.bundlePath(b.Version)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("bundle version %s already published; bundles are append-only", b.Version)
	}

	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to publish bundle: %w", err)
	}

	// Update the latest pointer, also by atomic rename.
	tmpLatest := s.latestPath() + ".tmp"
	if err := os.WriteFile(tmpLatest, []byte(b.Version), 0644); err != nil {
		return fmt.Errorf("failed to write latest pointer: %w", err)
	}
	if err := os.Rename(tmpLatest, s.latestPath()); err != nil {
		return fmt.Errorf("failed to update latest pointer: %w", err)
	}
	return nil
}

// Get retrieves a specific bundle version.
func (s *FilesystemStore) Get(ctx context.Context, version string) (*Bundle, error) {
	raw, err := os.ReadFile(s.bundlePath(version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("version %s: %w", version, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle %s: %w", version, err)
	}
	return &b, nil
}

// Latest retrieves the most recently published bundle.
func (s *FilesystemStore) Latest(ctx context.Context) (*Bundle, error) {
	raw, err := os.ReadFile(s.latestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read latest pointer: %w", err)
	}
	return s.Get(ctx, strings.TrimSpace(string(raw)))
}

// Versions lists all published versions, oldest first by publish time.
func (s *FilesystemStore) Versions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}

	type stamped struct {
		version string
		modTime int64
	}
	var found []stamped
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "bundle-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{
			version: strings.TrimSuffix(strings.TrimPrefix(name, "bundle-"), ".json"),
			modTime: info.ModTime().UnixNano(),
		})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].modTime != found[j].modTime {
			return found[i].modTime < found[j].modTime
		}
		return found[i].version < found[j].version
	})

	versions := make([]string, len(found))
	for i, f := range found {
		versions[i] = f.version
	}
	return versions, nil
}
