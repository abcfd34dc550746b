// handler.go — основной обработчик локального API Generation Workbench.
// Объединяет health, управление прогонами workflow и SSE-поток состояния.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/generation-workbench/internal/api/errors"
	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/workflow"
	"github.com/bigkaa/goartstore/generation-workbench/internal/i18n"
	"github.com/bigkaa/goartstore/generation-workbench/internal/service"
	"github.com/bigkaa/goartstore/generation-workbench/internal/storage/savedir"
)

// Sessions — реестр прогонов workflow.
type Sessions interface {
	Create(lang string) *service.Controller
	Get(id string) (*service.Controller, error)
	Delete(id string) error
}

// SampleDownloader — скачивание образца бланка.
type SampleDownloader interface {
	Sample(ctx context.Context) (*savedir.SaveResult, error)
}

// Options — параметры APIHandler.
type Options struct {
	// MaxUploadBytes — лимит тела multipart-запроса
	MaxUploadBytes int64
	// SSEInterval — период отправки состояния без изменений
	SSEInterval time.Duration
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	health   *HealthHandler
	sessions Sessions
	sample   SampleDownloader
	bundle   *i18n.Bundle
	opts     Options
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	sessions Sessions,
	sample SampleDownloader,
	bundle *i18n.Bundle,
	opts Options,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		sessions: sessions,
		sample:   sample,
		bundle:   bundle,
		opts:     opts,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует маршруты API.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sample/download", h.DownloadSample)

		r.Post("/workflows", h.CreateWorkflow)
		r.Route("/workflows/{id}", func(r chi.Router) {
			r.Get("/", h.GetWorkflow)
			r.Delete("/", h.DeleteWorkflow)
			r.Get("/events", h.StreamEvents)

			r.Put("/document", h.SetDocument)
			r.Delete("/document", h.RemoveDocument)
			r.Post("/document/analyze", h.AnalyzeDocument)

			r.Post("/attachments", h.AddAttachments)
			r.Delete("/attachments/{index}", h.RemoveAttachment)

			r.Put("/overrides/{item}", h.SetOverride)

			r.Put("/group", h.SetGroup)
			r.Post("/members/toggle-all", h.ToggleSelectAll)
			r.Post("/members/{rid}/toggle", h.ToggleMember)

			r.Put("/prompts", h.SetPrompts)

			r.Post("/submit", h.Submit)

			r.Post("/artifacts/download-all", h.DownloadAll)
			r.Post("/artifacts/{aid}/download", h.DownloadArtifact)
		})
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает JSON-тело запроса.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// controller возвращает прогон из URL или пишет 404.
func (h *APIHandler) controller(w http.ResponseWriter, r *http.Request) (*service.Controller, bool) {
	ctrl, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return ctrl, true
}

// writeError отображает ошибку сервиса или workflow в ответ API
// с локализованным сообщением.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		apierrors.NotFound(w, h.bundle.T(ctx, "error.NOT_FOUND"))
		return
	case errors.Is(err, service.ErrArtifactNotFound):
		apierrors.NotFound(w, h.bundle.T(ctx, "error.NO_ARTIFACT"))
		return
	}

	kind := workflow.KindOf(err)
	if kind == "" {
		h.logger.Error("Необработанная ошибка",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, h.bundle.T(ctx, "error.internal"))
		return
	}
	msg := service.LocalizeError(h.bundle, i18n.LangFromContext(ctx), err, "")
	apierrors.WriteError(w, apierrors.StatusForKind(kind), workflow.CodeOf(err), msg)
}

// publicState убирает содержимое файлов из снимка состояния.
// Снимок принадлежит вызывающему и меняется на месте.
func publicState(s workflow.State) workflow.State {
	if s.Document != nil {
		doc := *s.Document
		doc.Content = nil
		s.Document = &doc
	}
	for i := range s.Attachments {
		s.Attachments[i].Content = nil
	}
	return s
}
