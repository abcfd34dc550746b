// recipients.go — Recipient Set Resolver: группы, участники, выбор.
package workflow

import (
	"slices"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

func emptySubset() Selection {
	return Selection{Mode: model.SelectionSubset, IDs: []string{}}
}

// SetGroups заменяет список доступных групп.
func (s State) SetGroups(groups []model.RecipientGroup) State {
	out := s.Clone()
	out.Recipients.Groups = slices.Clone(groups)
	if out.Recipients.Groups == nil {
		out.Recipients.Groups = []model.RecipientGroup{}
	}
	out.Recipients.Error = ""
	return out
}

// FailGroups фиксирует неудачную загрузку списка групп.
func (s State) FailGroups(reason string) State {
	out := s.Clone()
	out.Recipients.Error = reason
	return out
}

// SetGroup делает группу активной. Выбор сбрасывается в пустое
// подмножество, список участников очищается до загрузки. Возвращает
// токен загрузки участников; для пустого id группа снимается
// полностью и возвращается 0.
func (s State) SetGroup(id string) (State, uint64) {
	out := s.Clone()
	r := &out.Recipients
	r.Token++
	r.GroupID = id
	r.Members = []model.Recipient{}
	r.Selection = emptySubset()
	r.Error = ""
	r.Loading = id != ""
	out.refreshPhase()
	if id == "" {
		return out, 0
	}
	return out, r.Token
}

// ApplyMembers применяет загруженный список участников активной группы.
// Устаревший токен игнорируется.
func (s State) ApplyMembers(token uint64, members []model.Recipient) (State, bool) {
	if token != s.Recipients.Token || !s.Recipients.Loading {
		return s, false
	}
	out := s.Clone()
	out.Recipients.Loading = false
	out.Recipients.Members = slices.Clone(members)
	if out.Recipients.Members == nil {
		out.Recipients.Members = []model.Recipient{}
	}
	out.Recipients.Selection = emptySubset()
	out.refreshPhase()
	return out, true
}

// FailMembers фиксирует неудачную загрузку участников.
// Устаревший токен игнорируется.
func (s State) FailMembers(token uint64, reason string) (State, bool) {
	if token != s.Recipients.Token || !s.Recipients.Loading {
		return s, false
	}
	out := s.Clone()
	out.Recipients.Loading = false
	out.Recipients.Members = []model.Recipient{}
	out.Recipients.Error = reason
	out.refreshPhase()
	return out, true
}

// ToggleMember переключает участника в выборе. Без активной группы
// или для неизвестного id ничего не делает. Переключение при выборе
// «все» оставляет выбранными всех остальных участников.
func (s State) ToggleMember(id string) State {
	if s.Recipients.GroupID == "" || !s.hasMember(id) {
		return s
	}
	out := s.Clone()
	r := &out.Recipients

	selected := make(map[string]bool)
	for _, sid := range s.EffectiveSelection() {
		selected[sid] = true
	}
	selected[id] = !selected[id]

	ids := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		if selected[string(m.ID)] {
			ids = append(ids, string(m.ID))
		}
	}
	r.Selection = Selection{Mode: model.SelectionSubset, IDs: ids}
	out.refreshPhase()
	return out
}

// ToggleSelectAll переключает «выбрать всех» ↔ пустое подмножество
// по производному индикатору AllSelected. На пустом списке участников
// ничего не делает.
func (s State) ToggleSelectAll() State {
	if len(s.Recipients.Members) == 0 {
		return s
	}
	out := s.Clone()
	if s.AllSelected() {
		out.Recipients.Selection = emptySubset()
	} else {
		out.Recipients.Selection = Selection{Mode: model.SelectionAll, IDs: []string{}}
	}
	out.refreshPhase()
	return out
}

// AllSelected — производный индикатор «выбраны все»: список участников
// непуст и каждый участник входит в эффективный выбор.
func (s State) AllSelected() bool {
	members := s.Recipients.Members
	if len(members) == 0 {
		return false
	}
	selected := make(map[string]bool)
	for _, id := range s.EffectiveSelection() {
		selected[id] = true
	}
	for _, m := range members {
		if !selected[string(m.ID)] {
			return false
		}
	}
	return true
}

// EffectiveSelection возвращает идентификаторы выбранных участников
// в порядке списка участников.
func (s State) EffectiveSelection() []string {
	r := s.Recipients
	ids := make([]string, 0, len(r.Members))
	if r.Selection.Mode == model.SelectionAll {
		for _, m := range r.Members {
			ids = append(ids, string(m.ID))
		}
		return ids
	}
	chosen := make(map[string]bool, len(r.Selection.IDs))
	for _, id := range r.Selection.IDs {
		chosen[id] = true
	}
	for _, m := range r.Members {
		if chosen[string(m.ID)] {
			ids = append(ids, string(m.ID))
		}
	}
	return ids
}

// selectionEmpty — ни один получатель не выбран.
func (s State) selectionEmpty() bool {
	if s.Recipients.Selection.Mode == model.SelectionAll {
		return len(s.Recipients.Members) == 0
	}
	return len(s.EffectiveSelection()) == 0
}

func (s State) hasMember(id string) bool {
	for _, m := range s.Recipients.Members {
		if string(m.ID) == id {
			return true
		}
	}
	return false
}
