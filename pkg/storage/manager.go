package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// JSONKind partitions the metadata cache by item type.
type JSONKind string

const (
	KindIllust  JSONKind = "illust"
	KindUser    JSONKind = "user"
	KindRanking JSONKind = "ranking"
)

// ImageTier partitions downloaded assets by resolution.
type ImageTier string

const (
	TierSquare ImageTier = "square"
	TierMedium ImageTier = "medium"
	TierLarge  ImageTier = "large"
	TierOrigin ImageTier = "origin"
	TierAvatar ImageTier = "avatar"
)

var (
	jsonKinds  = []JSONKind{KindIllust, KindUser, KindRanking}
	imageTiers = []ImageTier{TierSquare, TierMedium, TierLarge, TierOrigin, TierAvatar}
)

// Manager handles the on-disk layout: one JSON document per item under
// json/<kind>/, binary assets under img/<tier>/, with duplicate detection.
type Manager struct {
	baseDir    string
	downloaded map[string]bool
	mu         sync.RWMutex
}

// NewManager creates a storage manager rooted at baseDir and builds the
// directory tree.
func NewManager(baseDir string) (*Manager, error) {
	for _, kind := range jsonKinds {
		if err := os.MkdirAll(filepath.Join(baseDir, "json", string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create json directory: %w", err)
		}
	}
	for _, tier := range imageTiers {
		if err := os.MkdirAll(filepath.Join(baseDir, "img", string(tier)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create image directory: %w", err)
		}
	}

	manager := &Manager{
		baseDir:    baseDir,
		downloaded: make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records already downloaded assets for duplicate detection.
func (m *Manager) scanExistingFiles() error {
	for _, tier := range imageTiers {
		dir := filepath.Join(m.baseDir, "img", string(tier))
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				m.downloaded[string(tier)+"/"+entry.Name()] = true
			}
		}
	}
	return nil
}

// BaseDir returns the storage root.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// JSONPath returns the cache path for an item id within a kind.
func (m *Manager) JSONPath(kind JSONKind, name string) string {
	return filepath.Join(m.baseDir, "json", string(kind), name+".json")
}

// HasJSON reports whether a cached document exists for the item.
func (m *Manager) HasJSON(kind JSONKind, name string) bool {
	_, err := os.Stat(m.JSONPath(kind, name))
	return err == nil
}

// SaveJSON persists one item as canonical compact JSON named by its id.
func (m *Manager) SaveJSON(kind JSONKind, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", kind, name, err)
	}
	path := m.JSONPath(kind, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads a cached item document into v.
func (m *Manager) LoadJSON(kind JSONKind, name string, v interface{}) error {
	data, err := os.ReadFile(m.JSONPath(kind, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", kind, name, err)
	}
	return nil
}

// IsDownloaded checks if an asset already exists in a tier.
func (m *Manager) IsDownloaded(tier ImageTier, filename string) bool {
	m.mu.RLock()
	cached := m.downloaded[string(tier)+"/"+filename]
	m.mu.RUnlock()
	if cached {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.baseDir, "img", string(tier), filename)); err == nil {
		m.mu.Lock()
		m.downloaded[string(tier)+"/"+filename] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// SaveImage writes an asset into a tier atomically (temp file + rename).
func (m *Manager) SaveImage(tier ImageTier, filename string, r io.Reader) error {
	target := filepath.Join(m.baseDir, "img", string(tier), filename)
	tempFile := target + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save asset data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.downloaded[string(tier)+"/"+filename] = true
	m.mu.Unlock()

	return nil
}

// DownloadedCount returns the number of known downloaded assets.
func (m *Manager) DownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.downloaded)
}
