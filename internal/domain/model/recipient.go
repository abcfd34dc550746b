// recipient.go — группы получателей и их участники.
package model

// RecipientGroup — именованный список получателей (candidate list).
type RecipientGroup struct {
	ID          FlexString `json:"id"`
	Title       string     `json:"title"`
	MemberCount int        `json:"entriesCount"`
}

// Recipient — участник группы получателей.
type Recipient struct {
	// ID — идентификатор получателя (уникален в пределах группы)
	ID FlexString `json:"id"`
	// DisplayOrder — порядковый номер в списке
	DisplayOrder FlexString `json:"sequenceId"`
	// Name — отображаемое имя
	Name string `json:"learnerName"`
	// ExternalID — внешний идентификатор (номер учащегося)
	ExternalID FlexString `json:"learnerId"`
}

// PromptFragments — шаблоны промптов, передаваемые в запрос генерации.
type PromptFragments struct {
	System string `json:"system"`
	User   string `json:"user"`
}
