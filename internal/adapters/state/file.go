// Package state implementa la persistencia del EngineState: snapshot JSON
// con backup rotativo, y un journal SQLite de fills y ciclos para auditoría.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

// ErrCorrupt indica que ni el snapshot primario ni el backup deserializan.
// Es fatal: el engine no debe arrancar sobre un ledger ilegible.
var ErrCorrupt = errors.New("state: snapshot corrupt")

// FileStore implementa ports.StateStore sobre un fichero JSON. Antes de cada
// sobreescritura el snapshot anterior rota a <path>.bak, así siempre hay un
// estado restaurable aunque el proceso muera a mitad de escritura.
type FileStore struct {
	path string
}

// NewFileStore crea el store sobre la ruta dada.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save escribe el snapshot de forma atómica: primero a un temporal en el
// mismo directorio, luego rename. El snapshot anterior rota al backup.
func (s *FileStore) Save(_ context.Context, st *domain.EngineState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state.Save: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state.Save: mkdir %q: %w", dir, err)
	}

	// Rotación: el snapshot vigente pasa a ser el backup.
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, s.backupPath()); err != nil {
			return fmt.Errorf("state.Save: rotate backup: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("state.Save: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: rename: %w", err)
	}
	return nil
}

// Load devuelve el último snapshot. ok es false si no existe ninguno. Si el
// primario no deserializa intenta el backup antes de rendirse con ErrCorrupt.
func (s *FileStore) Load(_ context.Context) (*domain.EngineState, bool, error) {
	st, err := readSnapshot(s.path)
	if err == nil {
		return st, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}

	slog.Warn("primary snapshot unreadable, trying backup", "path", s.path, "err", err)
	st, bakErr := readSnapshot(s.backupPath())
	if bakErr == nil {
		return st, true, nil
	}
	if errors.Is(bakErr, os.ErrNotExist) {
		return nil, false, fmt.Errorf("state.Load: %q: %v: %w", s.path, err, ErrCorrupt)
	}
	return nil, false, fmt.Errorf("state.Load: %q and backup: %v; %v: %w", s.path, err, bakErr, ErrCorrupt)
}

func (s *FileStore) backupPath() string {
	return s.path + ".bak"
}

// readSnapshot lee y valida un fichero de estado.
func readSnapshot(path string) (*domain.EngineState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st domain.EngineState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if st.Ledger == nil {
		return nil, fmt.Errorf("snapshot without ledger")
	}
	if st.Ledger.Positions == nil {
		st.Ledger.Positions = make(map[string]domain.Position)
	}
	return &st, nil
}

var _ ports.StateStore = (*FileStore)(nil)
