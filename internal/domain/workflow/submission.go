// submission.go — Submission Builder: предусловия, снимок запроса,
// жизненный цикл отправки.
package workflow

import (
	"time"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

// checkPreconditions проверяет предусловия отправки в фиксированном
// порядке: документ → preview → группа → выбор. Возвращается первое
// нарушенное.
func (s State) checkPreconditions() error {
	switch {
	case s.Document == nil:
		return ErrMissingDocument
	case !s.PreviewReady():
		return ErrMissingPreview
	case s.Recipients.GroupID == "":
		return ErrMissingGroup
	case s.selectionEmpty():
		return ErrEmptySelection
	}
	return nil
}

// Ready — все предусловия отправки выполнены.
func (s State) Ready() bool {
	return s.checkPreconditions() == nil
}

// BuildRequest собирает неизменяемый снимок GenerationRequest.
// При нарушенном предусловии возвращает ValidationError с кодом
// первого нарушения.
func (s State) BuildRequest(id string, now time.Time) (model.GenerationRequest, error) {
	if err := s.checkPreconditions(); err != nil {
		return model.GenerationRequest{}, err
	}

	var memberIDs []string
	if s.Recipients.Selection.Mode != model.SelectionAll {
		memberIDs = s.EffectiveSelection()
	}

	return model.NewGenerationRequest(model.GenerationRequestParams{
		ID:          id,
		CreatedAt:   now,
		Document:    *s.Document,
		Attachments: s.Attachments,
		GroupID:     s.Recipients.GroupID,
		Mode:        s.Recipients.Selection.Mode,
		MemberIDs:   memberIDs,
		Overrides:   s.SanitizedOverrides(),
		Prompts:     s.Prompts,
	}), nil
}

// BeginSubmission переводит workflow в фазу submitting и возвращает
// снимок запроса. Пока предыдущая отправка не завершена, возвращает
// ErrSubmissionInFlight; запросы не ставятся в очередь.
func (s State) BeginSubmission(id string, now time.Time) (State, model.GenerationRequest, error) {
	if s.Phase == PhaseSubmitting {
		return s, model.GenerationRequest{}, ErrSubmissionInFlight
	}
	req, err := s.BuildRequest(id, now)
	if err != nil {
		return s, model.GenerationRequest{}, err
	}

	out := s.Clone()
	out.refreshPhase()
	if err := out.transition(PhaseSubmitting); err != nil {
		return s, model.GenerationRequest{}, err
	}
	out.Error = ""
	out.Notice = nil
	out.Progress = 0
	return out, req, nil
}

// CompleteSubmission применяет успешный результат генерации: список
// артефактов полностью заменяется, notice сообщает пользователю итог.
// Вне фазы submitting ничего не делает.
func (s State) CompleteSubmission(artifacts []model.ArtifactReference, notice Notice) State {
	if s.Phase != PhaseSubmitting {
		return s
	}
	out := s.Clone()
	out.Artifacts = make([]model.ArtifactReference, len(artifacts))
	copy(out.Artifacts, artifacts)
	out.Error = ""
	out.Notice = &notice
	_ = out.transition(PhaseCompleted)
	return out
}

// FailSubmission фиксирует неудачную отправку: message попадает в
// видимый слот ошибки, результаты и входные данные не меняются.
// Вне фазы submitting ничего не делает.
func (s State) FailSubmission(message string) State {
	if s.Phase != PhaseSubmitting {
		return s
	}
	out := s.Clone()
	out.Error = message
	_ = out.transition(PhaseFailed)
	return out
}
