// generation.go — снимок запроса генерации и ссылки на сгенерированные артефакты.
package model

import (
	"time"
)

// SelectionMode — режим выбора получателей.
type SelectionMode string

const (
	// SelectionAll — все участники активной группы (AllOf)
	SelectionAll SelectionMode = "all"
	// SelectionSubset — явно выбранное подмножество (SubsetOf)
	SelectionSubset SelectionMode = "subset"
)

// GenerationRequest — неизменяемый снимок входных данных, собранный в момент
// отправки. После создания не модифицируется: все поля неэкспортируемые,
// аксессоры возвращают копии.
type GenerationRequest struct {
	id          string
	createdAt   time.Time
	document    SourceDocument
	attachments []Attachment
	groupID     string
	mode        SelectionMode
	memberIDs   []string
	overrides   map[ItemID]int
	prompts     PromptFragments
}

// GenerationRequestParams — параметры для построения GenerationRequest.
type GenerationRequestParams struct {
	ID          string
	CreatedAt   time.Time
	Document    SourceDocument
	Attachments []Attachment
	GroupID     string
	Mode        SelectionMode
	MemberIDs   []string
	Overrides   map[ItemID]int
	Prompts     PromptFragments
}

// NewGenerationRequest создаёт снимок, копируя все изменяемые данные.
func NewGenerationRequest(p GenerationRequestParams) GenerationRequest {
	req := GenerationRequest{
		id:        p.ID,
		createdAt: p.CreatedAt,
		document:  p.Document.Clone(),
		groupID:   p.GroupID,
		mode:      p.Mode,
		prompts:   p.Prompts,
	}
	req.attachments = make([]Attachment, 0, len(p.Attachments))
	for _, a := range p.Attachments {
		req.attachments = append(req.attachments, a.Clone())
	}
	req.memberIDs = append([]string(nil), p.MemberIDs...)
	req.overrides = make(map[ItemID]int, len(p.Overrides))
	for k, v := range p.Overrides {
		req.overrides[k] = v
	}
	return req
}

// ID возвращает идентификатор снимка.
func (r GenerationRequest) ID() string { return r.id }

// CreatedAt возвращает время создания снимка.
func (r GenerationRequest) CreatedAt() time.Time { return r.createdAt }

// Document возвращает копию основного документа.
func (r GenerationRequest) Document() SourceDocument { return r.document.Clone() }

// Attachments возвращает копию списка вложений.
func (r GenerationRequest) Attachments() []Attachment {
	out := make([]Attachment, 0, len(r.attachments))
	for _, a := range r.attachments {
		out = append(out, a.Clone())
	}
	return out
}

// GroupID возвращает идентификатор группы получателей.
func (r GenerationRequest) GroupID() string { return r.groupID }

// Mode возвращает режим выбора получателей.
func (r GenerationRequest) Mode() SelectionMode { return r.mode }

// MemberIDs возвращает явно выбранных получателей (пусто для SelectionAll).
func (r GenerationRequest) MemberIDs() []string {
	return append([]string(nil), r.memberIDs...)
}

// Overrides возвращает копию санитизированной карты количеств.
func (r GenerationRequest) Overrides() map[ItemID]int {
	out := make(map[ItemID]int, len(r.overrides))
	for k, v := range r.overrides {
		out[k] = v
	}
	return out
}

// Prompts возвращает фрагменты промптов.
func (r GenerationRequest) Prompts() PromptFragments { return r.prompts }

// GeneratedArtifact — элемент ответа сервиса генерации.
type GeneratedArtifact struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}

// ArtifactReference — ссылка на сгенерированный документ,
// хранится в Result Collector до конца сессии.
type ArtifactReference struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	RecipientName string `json:"recipient_name,omitempty"`
}
