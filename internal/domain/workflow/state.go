// Пакет workflow — состояние и переходы Batch Generation Workflow.
//
// Всё состояние одного прогона сведено в сериализуемую структуру State.
// Переходы — методы со значимым получателем: они не меняют исходное
// состояние и возвращают новое. Асинхронность (анализ, загрузка
// участников, отправка) остаётся за контроллером; ответы возвращаются
// в State через переходы с токеном, устаревшие ответы игнорируются.
//
// Содержимое файлов (Content) считается неизменяемым и между версиями
// состояния не копируется.
package workflow

import (
	"maps"
	"slices"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

// NoticeKind — тип уведомления.
type NoticeKind string

const (
	// NoticeSuccess — успешное завершение операции
	NoticeSuccess NoticeKind = "success"
	// NoticeError — ошибка, не попавшая в основной слот ошибки
	NoticeError NoticeKind = "error"
)

// Notice — последнее уведомление для пользователя.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Code    string     `json:"code,omitempty"`
	Message string     `json:"message"`
}

// Preview — состояние сессии анализа основного документа.
type Preview struct {
	// Token — монотонный токен последнего запроса анализа
	Token uint64 `json:"token"`
	// Loading — анализ выполняется
	Loading bool `json:"loading"`
	// Items — элементы preview в порядке сервиса
	Items []model.PreviewItem `json:"items"`
	// Overrides — пользовательские количества; ключи всегда из Items
	Overrides map[model.ItemID]int `json:"overrides"`
	// Error — причина последнего неудачного анализа (AnalysisFailed)
	Error string `json:"error,omitempty"`
}

// Selection — выбор получателей в активной группе.
type Selection struct {
	Mode model.SelectionMode `json:"mode"`
	// IDs — явно выбранные получатели (только для SelectionSubset)
	IDs []string `json:"ids"`
}

// Recipients — состояние Recipient Set Resolver.
type Recipients struct {
	Groups []model.RecipientGroup `json:"groups"`
	// GroupID — активная группа; пустая строка — группа не выбрана
	GroupID string `json:"group_id"`
	// Token — монотонный токен последней загрузки участников
	Token   uint64            `json:"token"`
	Loading bool              `json:"loading"`
	Members []model.Recipient `json:"members"`
	// Selection — выбор внутри активной группы
	Selection Selection `json:"selection"`
	// Error — причина неудачной загрузки групп или участников
	Error string `json:"error,omitempty"`
}

// State — полное состояние одного прогона workflow.
type State struct {
	Document    *model.SourceDocument `json:"document,omitempty"`
	Attachments []model.Attachment    `json:"attachments"`
	Preview     Preview               `json:"preview"`
	Recipients  Recipients            `json:"recipients"`
	Prompts     model.PromptFragments `json:"prompts"`

	Phase        Phase              `json:"phase"`
	PhaseHistory []TransitionRecord `json:"phase_history,omitempty"`

	// Artifacts — содержимое Result Collector
	Artifacts []model.ArtifactReference `json:"artifacts"`
	// Progress — значение индикатора прогресса [0, 100]
	Progress int `json:"progress"`

	// Error — видимый слот ошибки
	Error string `json:"error,omitempty"`
	// Notice — последнее уведомление
	Notice *Notice `json:"notice,omitempty"`
}

// New возвращает начальное состояние прогона.
func New() State {
	return State{
		Attachments: []model.Attachment{},
		Preview:     Preview{Items: []model.PreviewItem{}, Overrides: map[model.ItemID]int{}},
		Recipients: Recipients{
			Groups:    []model.RecipientGroup{},
			Members:   []model.Recipient{},
			Selection: emptySubset(),
		},
		Phase:     PhaseIdle,
		Artifacts: []model.ArtifactReference{},
	}
}

// Clone возвращает глубокую копию состояния (кроме содержимого файлов).
func (s State) Clone() State {
	out := s
	if s.Document != nil {
		doc := *s.Document
		out.Document = &doc
	}
	out.Attachments = slices.Clone(s.Attachments)
	out.Preview.Items = slices.Clone(s.Preview.Items)
	out.Preview.Overrides = maps.Clone(s.Preview.Overrides)
	if out.Preview.Overrides == nil {
		out.Preview.Overrides = map[model.ItemID]int{}
	}
	out.Recipients.Groups = slices.Clone(s.Recipients.Groups)
	out.Recipients.Members = slices.Clone(s.Recipients.Members)
	out.Recipients.Selection.IDs = slices.Clone(s.Recipients.Selection.IDs)
	out.PhaseHistory = slices.Clone(s.PhaseHistory)
	out.Artifacts = slices.Clone(s.Artifacts)
	if s.Notice != nil {
		n := *s.Notice
		out.Notice = &n
	}
	return out
}

// WithProgress возвращает состояние с новым значением индикатора.
// Значение приводится к диапазону [0, 100].
func (s State) WithProgress(v int) State {
	out := s.Clone()
	out.Progress = min(max(v, 0), 100)
	return out
}

// WithNotice возвращает состояние с новым уведомлением.
func (s State) WithNotice(n Notice) State {
	out := s.Clone()
	out.Notice = &n
	return out
}

// WithError возвращает состояние с сообщением в видимом слоте ошибки.
func (s State) WithError(message string) State {
	out := s.Clone()
	out.Error = message
	return out
}

// ClearMessages сбрасывает слот ошибки и уведомление.
func (s State) ClearMessages() State {
	out := s.Clone()
	out.Error = ""
	out.Notice = nil
	return out
}

// SetPrompts заменяет фрагменты промптов.
func (s State) SetPrompts(p model.PromptFragments) State {
	out := s.Clone()
	out.Prompts = p
	return out
}
