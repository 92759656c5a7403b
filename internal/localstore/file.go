package localstore

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

// FileCartStore keeps the cart snapshot in a single JSON file. Writes go
// through a temp file plus rename so a crash mid-write never leaves a
// half-written document behind.
type FileCartStore struct {
	path string
}

func NewFileCartStore(path string) *FileCartStore {
	return &FileCartStore{path: path}
}

func (s *FileCartStore) Load(_ context.Context) []domain.CartItem {
	data, ok := readSnapshotFile(s.path)
	if !ok {
		return nil
	}
	return decodeCartDocument(data)
}

func (s *FileCartStore) Save(_ context.Context, items []domain.CartItem) {
	data, err := encodeCartDocument(items)
	if err != nil {
		log.Printf("encode cart snapshot failed: %v", err)
		return
	}
	writeSnapshotFile(s.path, data)
}

func (s *FileCartStore) Clear(_ context.Context) {
	removeSnapshotFile(s.path)
}

// FileFavoritesStore keeps the favorites snapshot in a single JSON file.
type FileFavoritesStore struct {
	path string
}

func NewFileFavoritesStore(path string) *FileFavoritesStore {
	return &FileFavoritesStore{path: path}
}

func (s *FileFavoritesStore) Load(_ context.Context) []domain.FavoriteItem {
	data, ok := readSnapshotFile(s.path)
	if !ok {
		return nil
	}
	return decodeFavoritesDocument(data)
}

func (s *FileFavoritesStore) Save(_ context.Context, items []domain.FavoriteItem) {
	data, err := encodeFavoritesDocument(items)
	if err != nil {
		log.Printf("encode favorites snapshot failed: %v", err)
		return
	}
	writeSnapshotFile(s.path, data)
}

func (s *FileFavoritesStore) Clear(_ context.Context) {
	removeSnapshotFile(s.path)
}

func readSnapshotFile(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("read snapshot %s failed, treating as empty: %v", path, err)
		}
		return nil, false
	}
	return data, true
}

func writeSnapshotFile(path string, data []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("create snapshot dir for %s failed: %v", path, err)
		return
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Printf("write snapshot %s failed: %v", path, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Printf("replace snapshot %s failed: %v", path, err)
	}
}

func removeSnapshotFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("remove snapshot %s failed: %v", path, err)
	}
}
