// preview.go — Preview Session и OverrideMap.
package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

// BeginAnalysis выпускает новый токен анализа и помечает preview
// как загружающийся. Возвращает токен, с которым контроллер должен
// вернуть результат. Без основного документа возвращает ErrMissingDocument.
func (s State) BeginAnalysis() (State, uint64, error) {
	if s.Document == nil {
		return s, 0, ErrMissingDocument
	}
	out := s.Clone()
	out.resetPreview()
	out.Preview.Loading = true
	out.refreshPhase()
	return out, out.Preview.Token, nil
}

// ApplyAnalysis применяет успешный результат анализа. Если токен
// устарел, состояние не меняется и возвращается false.
// Дублирующиеся номера элементов обрабатываются как неудачный анализ.
func (s State) ApplyAnalysis(token uint64, items []model.PreviewItem) (State, bool) {
	if token != s.Preview.Token || !s.Preview.Loading {
		return s, false
	}
	if id, dup := firstDuplicate(items); dup {
		out, _ := s.FailAnalysis(token, fmt.Sprintf("повторяющийся номер элемента %q", id))
		return out, true
	}

	out := s.Clone()
	out.Preview.Loading = false
	out.Preview.Error = ""
	out.Preview.Items = make([]model.PreviewItem, len(items))
	copy(out.Preview.Items, items)
	out.Preview.Overrides = make(map[model.ItemID]int, len(items))
	for _, it := range items {
		out.Preview.Overrides[it.Number] = suggested(it)
	}
	out.refreshPhase()
	return out, true
}

// FailAnalysis фиксирует неудачный анализ: элементы и OverrideMap
// очищаются, reason сохраняется как причина AnalysisFailed.
// Устаревший токен игнорируется.
func (s State) FailAnalysis(token uint64, reason string) (State, bool) {
	if token != s.Preview.Token || !s.Preview.Loading {
		return s, false
	}
	out := s.Clone()
	out.Preview.Loading = false
	out.Preview.Items = []model.PreviewItem{}
	out.Preview.Overrides = map[model.ItemID]int{}
	out.Preview.Error = reason
	out.refreshPhase()
	return out, true
}

// SetOverride задаёт количество для элемента preview. Никогда не
// возвращает ошибку: значение, не являющееся положительным целым,
// заменяется предложенным количеством элемента. Неизвестный
// идентификатор игнорируется.
func (s State) SetOverride(id model.ItemID, raw string) State {
	item, ok := s.previewItem(id)
	if !ok {
		return s
	}
	out := s.Clone()
	out.Preview.Overrides[id] = ResolveCount(raw, suggested(item))
	return out
}

// ResolveCount разбирает raw как положительное целое; иначе
// возвращает fallback.
func ResolveCount(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// PreviewReady — preview непуст и анализ не выполняется.
func (s State) PreviewReady() bool {
	return len(s.Preview.Items) > 0 && !s.Preview.Loading
}

// SanitizedOverrides возвращает для каждого элемента preview
// количество из OverrideMap, если оно положительно, иначе предложенное.
func (s State) SanitizedOverrides() map[model.ItemID]int {
	out := make(map[model.ItemID]int, len(s.Preview.Items))
	for _, it := range s.Preview.Items {
		if v, ok := s.Preview.Overrides[it.Number]; ok && v > 0 {
			out[it.Number] = v
			continue
		}
		out[it.Number] = suggested(it)
	}
	return out
}

func (s State) previewItem(id model.ItemID) (model.PreviewItem, bool) {
	for _, it := range s.Preview.Items {
		if it.Number == id {
			return it, true
		}
	}
	return model.PreviewItem{}, false
}

// suggested возвращает предложенное количество, не меньше 1.
func suggested(it model.PreviewItem) int {
	return max(it.SuggestedCount, 1)
}

func firstDuplicate(items []model.PreviewItem) (model.ItemID, bool) {
	seen := make(map[model.ItemID]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.Number]; ok {
			return it.Number, true
		}
		seen[it.Number] = struct{}{}
	}
	return "", false
}
