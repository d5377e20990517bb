package viewport

import (
	"os"
	"path/filepath"

	"chart_sync/internal/models"
	"chart_sync/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const stateFile = "chart_viewport.json"

// Store — файловое хранилище вьюпорта для принудительного reload.
// Запись переживает ровно одно чтение: Take удаляет файл, так что при
// обычном старте сохранённого вьюпорта никогда нет.
type Store struct {
	path string
}

func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, stateFile)}
}

// Save — best effort: ошибка логируется, reload продолжается без вьюпорта.
func (s *Store) Save(v models.Viewport) error {
	if v.Empty() {
		return nil
	}
	raw, err := sonic.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "viewport encode")
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return errors.Wrap(err, "viewport write")
	}
	return nil
}

// Has — есть ли сохранённая запись, без потребления.
func (s *Store) Has() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Take возвращает сохранённый вьюпорт и стирает его. Битая или
// отсутствующая запись — просто нет вьюпорта, без ошибки наружу.
func (s *Store) Take() (models.Viewport, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return models.Viewport{}, false
	}
	_ = os.Remove(s.path)

	var v models.Viewport
	if err := sonic.Unmarshal(raw, &v); err != nil {
		logger.Warn("viewport: drop corrupt state: %v", err)
		return models.Viewport{}, false
	}
	if v.Empty() {
		return models.Viewport{}, false
	}
	return v, true
}
