// results.go — Result Collector: ссылки на сгенерированные артефакты.
package workflow

import (
	"fmt"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

// DefaultArtifactName — имя файла по умолчанию для одиночного артефакта.
const DefaultArtifactName = "answer-sheet"

// DisplayName возвращает отображаемое имя n-го (с 1) артефакта.
func DisplayName(n int, recipient string) string {
	if recipient == "" {
		return fmt.Sprintf("Answer Sheet %d", n)
	}
	return fmt.Sprintf("Answer Sheet %d for %s", n, recipient)
}

// DeriveArtifacts строит ссылки на артефакты из ответа сервиса
// генерации. Элементы без идентификатора пропускаются, нумерация
// отображаемых имён сквозная по принятым элементам.
func DeriveArtifacts(generated []model.GeneratedArtifact) []model.ArtifactReference {
	out := make([]model.ArtifactReference, 0, len(generated))
	for _, g := range generated {
		if g.ID == "" {
			continue
		}
		out = append(out, model.ArtifactReference{
			ID:            string(g.ID),
			DisplayName:   DisplayName(len(out)+1, g.Name),
			RecipientName: g.Name,
		})
	}
	return out
}

// Artifact возвращает артефакт по идентификатору и его позицию (с 1).
func (s State) Artifact(id string) (model.ArtifactReference, int, bool) {
	for i, a := range s.Artifacts {
		if a.ID == id {
			return a, i + 1, true
		}
	}
	return model.ArtifactReference{}, 0, false
}

// ArtifactIDs возвращает идентификаторы всех артефактов в порядке списка.
func (s State) ArtifactIDs() []string {
	ids := make([]string, 0, len(s.Artifacts))
	for _, a := range s.Artifacts {
		ids = append(ids, a.ID)
	}
	return ids
}
