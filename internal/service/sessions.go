// sessions.go — Registry: прогоны workflow процесса.
// Прогоны хранятся в expirable LRU: неактивный прогон истекает через
// TTL, при переполнении вытесняется самый давний. Вытесненный прогон
// закрывается.
package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry — реестр прогонов workflow.
type Registry struct {
	sessions *expirable.LRU[string, *Controller]
	deps     ControllerDeps
	logger   *slog.Logger
}

// NewRegistry создаёт реестр не более чем на maxSize прогонов.
// Прогон, к которому не обращались дольше ttl, закрывается.
// deps — шаблон зависимостей для новых прогонов.
func NewRegistry(maxSize int, ttl time.Duration, deps ControllerDeps, logger *slog.Logger) *Registry {
	r := &Registry{
		deps:   deps,
		logger: logger.With(slog.String("component", "registry")),
	}
	r.sessions = expirable.NewLRU[string, *Controller](maxSize, r.onEvict, ttl)
	return r
}

// Create создаёт прогон с языком уведомлений lang и запускает
// фоновую загрузку групп и промптов.
func (r *Registry) Create(lang string) *Controller {
	deps := r.deps
	deps.Lang = lang
	ctrl := NewController(uuid.NewString(), deps)

	r.sessions.Add(ctrl.ID(), ctrl)
	activeSessions.Inc()
	ctrl.Start()

	r.logger.Info("Прогон workflow создан",
		slog.String("workflow_id", ctrl.ID()),
		slog.String("lang", lang),
	)
	return ctrl
}

// Get возвращает прогон по идентификатору и продлевает его TTL.
func (r *Registry) Get(id string) (*Controller, error) {
	ctrl, ok := r.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	// Повторный Add обновляет срок жизни без вызова onEvict.
	r.sessions.Add(id, ctrl)
	return ctrl, nil
}

// Delete закрывает и удаляет прогон.
func (r *Registry) Delete(id string) error {
	if !r.sessions.Remove(id) {
		return ErrSessionNotFound
	}
	return nil
}

// Len возвращает количество активных прогонов.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Close закрывает все прогоны.
func (r *Registry) Close() {
	r.sessions.Purge()
}

func (r *Registry) onEvict(id string, ctrl *Controller) {
	ctrl.Close()
	activeSessions.Dec()
	r.logger.Info("Прогон workflow закрыт", slog.String("workflow_id", id))
}
