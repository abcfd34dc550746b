// errors.go — таксономия ошибок workflow.
package workflow

import (
	"errors"
	"fmt"
)

// Kind — класс ошибки workflow. Определяет, как ошибка показывается
// пользователю и в какой HTTP-статус отображается на API.
type Kind string

const (
	// KindInvalidInput — неверный тип или размер файла (до любого сетевого вызова)
	KindInvalidInput Kind = "invalid_input"
	// KindValidation — не выполнено предусловие отправки
	KindValidation Kind = "validation"
	// KindRemote — сервис вернул структурированную ошибку
	KindRemote Kind = "remote"
	// KindNetwork — сервис недоступен
	KindNetwork Kind = "network"
	// KindDownload — не удалось получить артефакт или архив
	KindDownload Kind = "download"
	// KindConflict — операция отклонена из-за текущей фазы
	KindConflict Kind = "conflict"
)

// Машиночитаемые коды ошибок.
const (
	CodeInvalidDocumentType      = "INVALID_DOCUMENT_TYPE"
	CodeDocumentTooLarge         = "DOCUMENT_TOO_LARGE"
	CodeAttachmentTooLarge       = "ATTACHMENT_TOO_LARGE"
	CodeAttachmentTypeNotAllowed = "ATTACHMENT_TYPE_NOT_ALLOWED"
	CodeMissingDocument          = "MISSING_DOCUMENT"
	CodeMissingPreview           = "MISSING_PREVIEW"
	CodeMissingGroup             = "MISSING_GROUP"
	CodeEmptySelection           = "EMPTY_SELECTION"
	CodeAnalysisFailed           = "ANALYSIS_FAILED"
	CodeSubmissionInFlight       = "SUBMISSION_IN_FLIGHT"
	CodeSubmissionFailed         = "SUBMISSION_FAILED"
	CodeDownloadFailed           = "DOWNLOAD_FAILED"
)

// Error — ошибка workflow с классом и стабильным кодом.
type Error struct {
	Kind    Kind   // Класс ошибки
	Code    string // Машиночитаемый код
	Message string // Человекочитаемое описание
	Err     error  // Исходная ошибка (может быть nil)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает ошибки по коду, что позволяет писать
// errors.Is(err, workflow.ErrEmptySelection).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Эталонные ошибки для errors.Is.
var (
	ErrInvalidDocumentType = newError(KindInvalidInput, CodeInvalidDocumentType,
		"основной документ должен быть PDF")
	ErrDocumentTooLarge = newError(KindInvalidInput, CodeDocumentTooLarge,
		"основной документ превышает 10 МиБ")
	ErrAttachmentTooLarge = newError(KindInvalidInput, CodeAttachmentTooLarge,
		"вложение превышает 15 МиБ")
	ErrAttachmentTypeNotAllowed = newError(KindInvalidInput, CodeAttachmentTypeNotAllowed,
		"недопустимый тип вложения")
	ErrMissingDocument = newError(KindValidation, CodeMissingDocument,
		"не загружен основной документ")
	ErrMissingPreview = newError(KindValidation, CodeMissingPreview,
		"документ ещё не проанализирован")
	ErrMissingGroup = newError(KindValidation, CodeMissingGroup,
		"не выбрана группа получателей")
	ErrEmptySelection = newError(KindValidation, CodeEmptySelection,
		"не выбран ни один получатель")
	ErrSubmissionInFlight = newError(KindConflict, CodeSubmissionInFlight,
		"запрос генерации уже выполняется")
)

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// withDetail возвращает копию эталонной ошибки с уточнённым сообщением.
func withDetail(base *Error, format string, args ...any) *Error {
	return &Error{
		Kind:    base.Kind,
		Code:    base.Code,
		Message: fmt.Sprintf("%s: %s", base.Message, fmt.Sprintf(format, args...)),
	}
}

// KindOf возвращает класс ошибки или пустую строку, если err
// не является *Error.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

// CodeOf возвращает код ошибки или пустую строку.
func CodeOf(err error) string {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}
