// upload.go — разбор multipart-запросов с файлами.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// multipartMemory — сколько данных формы держится в памяти,
// остальное ParseMultipartForm пишет во временные файлы.
const multipartMemory = 32 << 20

// uploadedFile — файл из multipart-формы.
type uploadedFile struct {
	Name      string
	MediaType string
	Content   []byte
}

// errPayloadTooLarge — тело запроса превысило MaxUploadBytes.
var errPayloadTooLarge = errors.New("тело запроса превышает лимит")

// parseMultipart ограничивает размер тела и разбирает форму.
func (h *APIHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errPayloadTooLarge
		}
		return nil, fmt.Errorf("разбор multipart: %w", err)
	}
	return r.MultipartForm, nil
}

// readFiles читает все файлы поля field.
func readFiles(form *multipart.Form, field string) ([]uploadedFile, error) {
	headers := form.File[field]
	files := make([]uploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("открытие %q: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("чтение %q: %w", fh.Filename, err)
		}
		files = append(files, uploadedFile{
			Name:      filepath.Base(fh.Filename),
			MediaType: mediaType(fh.Header.Get("Content-Type"), fh.Filename, content),
			Content:   content,
		})
	}
	return files, nil
}

// mediaType возвращает MIME-тип файла без параметров: заявленный
// клиентом, иначе по расширению, иначе по содержимому.
func mediaType(declared, filename string, content []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(content))
	return mt
}
