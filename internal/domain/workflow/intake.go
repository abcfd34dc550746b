// intake.go — Intake Validator: основной документ и вложения.
package workflow

import (
	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

// Rejection — отклонённое вложение.
type Rejection struct {
	// Index — позиция файла во входном списке
	Index int    `json:"index"`
	Name  string `json:"name"`
	Err   *Error `json:"-"`
}

// ValidateDocument проверяет тип и размер основного документа.
func ValidateDocument(doc model.SourceDocument) error {
	if doc.MediaType != model.MediaTypePDF {
		return withDetail(ErrInvalidDocumentType, "%q имеет тип %q", doc.Name, doc.MediaType)
	}
	if doc.Size > model.MaxDocumentSize {
		return withDetail(ErrDocumentTooLarge, "%q: %d байт", doc.Name, doc.Size)
	}
	return nil
}

// ValidateAttachment проверяет размер и тип вложения.
// Размер проверяется первым.
func ValidateAttachment(a model.Attachment) *Error {
	if a.Size > model.MaxAttachmentSize {
		return withDetail(ErrAttachmentTooLarge, "%q: %d байт", a.Name, a.Size)
	}
	if !model.AttachmentMediaTypes[a.MediaType] {
		return withDetail(ErrAttachmentTypeNotAllowed, "%q имеет тип %q", a.Name, a.MediaType)
	}
	return nil
}

// SetPrimaryDocument заменяет основной документ. Preview и OverrideMap
// очищаются, токен анализа увеличивается, так что ответ на ранее
// выпущенный анализ будет отброшен. Сам анализ запускает контроллер
// через BeginAnalysis.
func (s State) SetPrimaryDocument(doc model.SourceDocument) (State, error) {
	if err := ValidateDocument(doc); err != nil {
		return s, err
	}
	out := s.Clone()
	d := doc
	out.Document = &d
	out.resetPreview()
	out.refreshPhase()
	return out, nil
}

// RemovePrimaryDocument удаляет основной документ вместе с Preview
// и OverrideMap и инвалидирует выполняющийся анализ.
func (s State) RemovePrimaryDocument() State {
	out := s.Clone()
	out.Document = nil
	out.resetPreview()
	out.refreshPhase()
	return out
}

// AddAttachments добавляет допустимые файлы в конец списка вложений.
// Недопустимые файлы возвращаются списком отклонений, остальные
// принимаются.
func (s State) AddAttachments(files []model.Attachment) (State, []Rejection) {
	out := s.Clone()
	var rejected []Rejection
	for i, f := range files {
		if err := ValidateAttachment(f); err != nil {
			rejected = append(rejected, Rejection{Index: i, Name: f.Name, Err: err})
			continue
		}
		out.Attachments = append(out.Attachments, f)
	}
	out.refreshPhase()
	return out, rejected
}

// RemoveAttachment удаляет вложение по позиции. Позиция вне диапазона
// ничего не делает.
func (s State) RemoveAttachment(index int) State {
	if index < 0 || index >= len(s.Attachments) {
		return s
	}
	out := s.Clone()
	out.Attachments = append(out.Attachments[:index], out.Attachments[index+1:]...)
	out.refreshPhase()
	return out
}

// resetPreview очищает preview и инвалидирует выполняющийся анализ.
func (s *State) resetPreview() {
	s.Preview = Preview{
		Token:     s.Preview.Token + 1,
		Items:     []model.PreviewItem{},
		Overrides: map[model.ItemID]int{},
	}
}
