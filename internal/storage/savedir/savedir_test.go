package savedir

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// TestNew_CreatesDirectory проверяет создание директории загрузок.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads", "nested")

	d, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания Dir: %v", err)
	}
	if d.Path() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, d.Path())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("директория не создана: %v", err)
	}
}

// TestSave проверяет запись, размер и checksum.
func TestSave(t *testing.T) {
	d, _ := New(t.TempDir())
	content := []byte("PK\x03\x04 архив")

	res, err := d.Save("answer-sheets.zip", strings.NewReader(string(content)))
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if res.Name != "answer-sheets.zip" {
		t.Errorf("Name = %q", res.Name)
	}
	if res.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), res.Size)
	}
	sum := sha256.Sum256(content)
	if res.Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("checksum не совпадает")
	}

	data, err := os.ReadFile(res.Path)
	if err != nil || string(data) != string(content) {
		t.Errorf("содержимое на диске: %q, %v", data, err)
	}
}

// TestSave_Collisions проверяет числовой суффикс при совпадении имён.
func TestSave_Collisions(t *testing.T) {
	d, _ := New(t.TempDir())

	want := []string{"answer-sheet.docx", "answer-sheet-1.docx", "answer-sheet-2.docx"}
	for i, w := range want {
		res, err := d.Save("answer-sheet.docx", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("сохранение %d: %v", i, err)
		}
		if res.Name != w {
			t.Errorf("сохранение %d: Name = %q, ожидалось %q", i, res.Name, w)
		}
	}
}

// TestSave_Concurrent проверяет, что параллельные сохранения не
// перезаписывают друг друга.
func TestSave_Concurrent(t *testing.T) {
	d, _ := New(t.TempDir())

	const n = 20
	var wg sync.WaitGroup
	names := make(chan string, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.Save("sample-answer-sheet.docx", strings.NewReader("data"))
			if err != nil {
				t.Errorf("Save: %v", err)
				return
			}
			names <- res.Name
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool)
	for name := range names {
		if seen[name] {
			t.Errorf("имя %q выдано дважды", name)
		}
		seen[name] = true
	}
	if len(seen) != n {
		t.Errorf("сохранено %d файлов, ожидалось %d", len(seen), n)
	}
}

// TestSave_NoTempLeftovers проверяет, что temp файлы не остаются.
func TestSave_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	d, _ := New(dir)
	if _, err := d.Save("a.docx", strings.NewReader("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("остался временный файл %s", e.Name())
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"answer-sheet.docx", "answer-sheet.docx"},
		{"Answer Sheet 1 for Иван.docx", "Answer-Sheet-1-for-Иван.docx"},
		{"../../etc/passwd", "passwd"},
		{`..\..\win.ini`, "win.ini"},
		{"", "file"},
		{"???.zip", "file.zip"},
		{"noext", "noext"},
		{"a.b.c.docx", "a-b-c.docx"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}
