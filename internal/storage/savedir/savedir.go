// Пакет savedir — локальное сохранение скачанных артефактов.
// Запись атомарная: temp файл → fsync → rename. При совпадении имени
// к нему добавляется числовой суффикс: report.docx, report-1.docx, ...
package savedir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

// maxNameRunes — ограничение длины базового имени файла.
const maxNameRunes = 100

// maxSuffix — сколько числовых суффиксов перебирается при коллизиях.
const maxSuffix = 10000

// Dir — директория сохранения.
type Dir struct {
	path string
	// mu сериализует выбор свободного имени и rename
	mu sync.Mutex
}

// SaveResult — результат сохранения файла.
type SaveResult struct {
	// Name — итоговое имя файла (с суффиксом при коллизии)
	Name string `json:"name"`
	// Path — полный путь на диске
	Path string `json:"path"`
	// Size — размер в байтах
	Size int64 `json:"size"`
	// Checksum — SHA-256 содержимого
	Checksum string `json:"checksum"`
}

// New создаёт директорию сохранения, если её нет.
func New(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// Path возвращает путь к директории.
func (d *Dir) Path() string {
	return d.path
}

// Save записывает содержимое reader в файл filename.
// filename очищается от небезопасных символов; расширение сохраняется.
func (d *Dir) Save(filename string, reader io.Reader) (*SaveResult, error) {
	tmp, err := os.CreateTemp(d.path, ".download-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := tmp.Name()

	hasher := sha256.New()
	size, err := io.Copy(tmp, io.TeeReader(reader, hasher))
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	name, err := d.commit(tmpPath, SanitizeFilename(filename))
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	return &SaveResult{
		Name:     name,
		Path:     filepath.Join(d.path, name),
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// commit переименовывает temp файл в первое свободное имя.
func (d *Dir) commit(tmpPath, filename string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	for i := 0; i < maxSuffix; i++ {
		name := filename
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		full := filepath.Join(d.path, name)
		if _, err := os.Lstat(full); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("проверка %s: %w", name, err)
		}
		if err := os.Rename(tmpPath, full); err != nil {
			return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
		}
		return name, nil
	}
	return "", fmt.Errorf("нет свободного имени для %s", filename)
}

// SanitizeFilename оставляет в имени буквы, цифры, дефис, подчёркивание
// и точку; пробелы заменяются дефисом. Пустой результат — "file".
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = sanitize(base)
	if r := []rune(base); len(r) > maxNameRunes {
		base = string(r[:maxNameRunes])
	}

	var cleanExt strings.Builder
	for _, r := range ext {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cleanExt.WriteRune(r)
		}
	}
	if cleanExt.Len() > 0 {
		return base + "." + cleanExt.String()
	}
	return base
}

// sanitize убирает небезопасные символы из части имени файла.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			result.WriteRune(r)
		case r == ' ' || r == '.':
			result.WriteRune('-')
		}
	}
	out := strings.Trim(result.String(), "-")
	if out == "" {
		return "file"
	}
	return out
}
