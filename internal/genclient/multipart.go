// multipart.go — формирование multipart/form-data тел запросов.
package genclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

// Поля формы запроса генерации.
const (
	fieldQuestionPaper = "questionPaper"
	fieldAttachments   = "attachments"
	fieldListID        = "listId"
	fieldGenerateAll   = "generateAll"
	fieldCandidateIDs  = "candidateIds"
	fieldOverrides     = "bulletOverrides"
	fieldSystemPrompt  = "attachmentSystemPrompt"
	fieldUserPrompt    = "attachmentUserPrompt"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartWriter — обёртка над multipart.Writer, сохраняющая MIME-тип
// файловых частей.
type multipartWriter struct {
	w *multipart.Writer
}

// file добавляет файловую часть с заявленным MIME-типом.
func (m *multipartWriter) file(field, filename, mediaType string, content []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	h.Set("Content-Type", mediaType)

	part, err := m.w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("часть %s: %w", field, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("запись части %s: %w", field, err)
	}
	return nil
}

// field добавляет текстовое поле.
func (m *multipartWriter) field(name, value string) error {
	if err := m.w.WriteField(name, value); err != nil {
		return fmt.Errorf("поле %s: %w", name, err)
	}
	return nil
}

// buildMultipart собирает тело запроса и возвращает его вместе
// с Content-Type (включая boundary).
func buildMultipart(fill func(w *multipartWriter) error) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := fill(&multipartWriter{w: mw}); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("закрытие multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// writeGenerateForm заполняет форму запроса генерации из снимка.
func writeGenerateForm(w *multipartWriter, req model.GenerationRequest) error {
	doc := req.Document()
	if err := w.file(fieldQuestionPaper, doc.Name, doc.MediaType, doc.Content); err != nil {
		return err
	}
	for _, a := range req.Attachments() {
		if err := w.file(fieldAttachments, a.Name, a.MediaType, a.Content); err != nil {
			return err
		}
	}

	if err := w.field(fieldListID, req.GroupID()); err != nil {
		return err
	}
	if req.Mode() == model.SelectionAll {
		if err := w.field(fieldGenerateAll, "true"); err != nil {
			return err
		}
	} else {
		for _, id := range req.MemberIDs() {
			if err := w.field(fieldCandidateIDs, id); err != nil {
				return err
			}
		}
	}

	overrides, err := json.Marshal(req.Overrides())
	if err != nil {
		return fmt.Errorf("кодирование %s: %w", fieldOverrides, err)
	}
	if err := w.field(fieldOverrides, string(overrides)); err != nil {
		return err
	}

	prompts := req.Prompts()
	if err := w.field(fieldSystemPrompt, prompts.System); err != nil {
		return err
	}
	return w.field(fieldUserPrompt, prompts.User)
}

func pathEscape(s string) string {
	return url.PathEscape(s)
}
