// Пакет model — доменные модели Generation Workbench.
// document.go — исходный документ и вложения, принимаемые на вход workflow.
package model

// Допустимые MIME-типы входных файлов.
const (
	// MediaTypePDF — единственный допустимый тип основного документа
	MediaTypePDF = "application/pdf"
	// MediaTypeText — простой текст (только вложения)
	MediaTypeText = "text/plain"
	// MediaTypeDOC — Microsoft Word 97-2003 (только вложения)
	MediaTypeDOC = "application/msword"
	// MediaTypeDOCX — Microsoft Word OOXML (только вложения)
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	// MediaTypePNG — изображение PNG (только вложения)
	MediaTypePNG = "image/png"
	// MediaTypeJPEG — изображение JPEG (только вложения)
	MediaTypeJPEG = "image/jpeg"
)

// Лимиты размеров входных файлов.
const (
	// MaxDocumentSize — максимальный размер основного документа (10 MiB)
	MaxDocumentSize int64 = 10 * 1024 * 1024
	// MaxAttachmentSize — максимальный размер одного вложения (15 MiB)
	MaxAttachmentSize int64 = 15 * 1024 * 1024
)

// SourceDocument — основной документ (опросник), по которому строится
// структурный preview. Заменяется целиком при повторном выборе.
type SourceDocument struct {
	// Name — исходное имя файла
	Name string `json:"name"`
	// MediaType — заявленный MIME-тип
	MediaType string `json:"media_type"`
	// Size — размер содержимого в байтах
	Size int64 `json:"size"`
	// Content — содержимое файла
	Content []byte `json:"content,omitempty"`
}

// Attachment — дополнительный файл, передаваемый в запрос генерации
// без структурного анализа.
type Attachment struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Content   []byte `json:"content,omitempty"`
}

// AttachmentMediaTypes — allow-list MIME-типов вложений.
var AttachmentMediaTypes = map[string]bool{
	MediaTypePDF:  true,
	MediaTypeText: true,
	MediaTypeDOC:  true,
	MediaTypeDOCX: true,
	MediaTypePNG:  true,
	MediaTypeJPEG: true,
}

// Clone возвращает копию документа с собственным буфером содержимого.
func (d SourceDocument) Clone() SourceDocument {
	d.Content = cloneBytes(d.Content)
	return d
}

// Clone возвращает копию вложения с собственным буфером содержимого.
func (a Attachment) Clone() Attachment {
	a.Content = cloneBytes(a.Content)
	return a
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
