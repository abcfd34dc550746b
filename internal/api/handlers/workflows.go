// workflows.go — обработчики операций прогона workflow.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/generation-workbench/internal/api/errors"
	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/workflow"
	"github.com/bigkaa/goartstore/generation-workbench/internal/i18n"
	"github.com/bigkaa/goartstore/generation-workbench/internal/service"
)

// workflowResponse — идентификатор и снимок состояния прогона.
type workflowResponse struct {
	ID    string         `json:"id"`
	State workflow.State `json:"state"`
}

// rejectedFile — отклонённое вложение в ответе.
type rejectedFile struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// attachmentsResponse — ответ на добавление вложений.
type attachmentsResponse struct {
	workflowResponse
	Rejected []rejectedFile `json:"rejected"`
}

func (h *APIHandler) writeState(w http.ResponseWriter, status int, ctrl *service.Controller) {
	writeJSON(w, status, workflowResponse{ID: ctrl.ID(), State: publicState(ctrl.Snapshot())})
}

// CreateWorkflow — создание прогона. Язык уведомлений берётся из запроса.
func (h *APIHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	ctrl := h.sessions.Create(i18n.LangFromContext(r.Context()))
	w.Header().Set("Location", "/api/v1/workflows/"+ctrl.ID())
	h.writeState(w, http.StatusCreated, ctrl)
}

// GetWorkflow — снимок состояния прогона.
func (h *APIHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.writeState(w, http.StatusOK, ctrl)
}

// DeleteWorkflow — закрытие прогона.
func (h *APIHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Intake ---

// SetDocument — выбор основного документа (multipart, поле file).
// Анализ запускается асинхронно, ответ 202.
func (h *APIHandler) SetDocument(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	files, ok := h.uploads(w, r, "file")
	if !ok {
		return
	}
	if len(files) != 1 {
		apierrors.ValidationError(w, h.bundle.T(r.Context(), "error.bad_request"))
		return
	}

	f := files[0]
	err := ctrl.SetDocument(model.SourceDocument{
		Name:      f.Name,
		MediaType: f.MediaType,
		Size:      int64(len(f.Content)),
		Content:   f.Content,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, http.StatusAccepted, ctrl)
}

// RemoveDocument — удаление основного документа.
func (h *APIHandler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.RemoveDocument()
	h.writeState(w, http.StatusOK, ctrl)
}

// AnalyzeDocument — повторный анализ текущего документа.
func (h *APIHandler) AnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.Reanalyze(); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, http.StatusAccepted, ctrl)
}

// AddAttachments — добавление вложений (multipart, поле files).
// Допустимые файлы добавляются, отклонённые перечисляются в ответе.
func (h *APIHandler) AddAttachments(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	files, ok := h.uploads(w, r, "files")
	if !ok {
		return
	}

	attachments := make([]model.Attachment, 0, len(files))
	for _, f := range files {
		attachments = append(attachments, model.Attachment{
			Name:      f.Name,
			MediaType: f.MediaType,
			Size:      int64(len(f.Content)),
			Content:   f.Content,
		})
	}

	rejected := ctrl.AddAttachments(attachments)
	lang := i18n.LangFromContext(r.Context())
	resp := attachmentsResponse{
		workflowResponse: workflowResponse{ID: ctrl.ID(), State: publicState(ctrl.Snapshot())},
		Rejected:         make([]rejectedFile, 0, len(rejected)),
	}
	for _, rej := range rejected {
		resp.Rejected = append(resp.Rejected, rejectedFile{
			Index:   rej.Index,
			Name:    rej.Name,
			Code:    rej.Err.Code,
			Message: service.LocalizeError(h.bundle, lang, rej.Err, rej.Name),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// RemoveAttachment — удаление вложения по индексу.
func (h *APIHandler) RemoveAttachment(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		apierrors.ValidationError(w, h.bundle.T(r.Context(), "error.bad_request"))
		return
	}
	ctrl.RemoveAttachment(index)
	h.writeState(w, http.StatusOK, ctrl)
}

// SetOverride — количество пунктов для элемента preview.
// Тело {"value": "3"} или {"value": 3}.
func (h *APIHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, h.bundle.T(r.Context(), "error.bad_request"))
		return
	}
	ctrl.SetOverride(model.ItemID(chi.URLParam(r, "item")), rawValue(req.Value))
	h.writeState(w, http.StatusOK, ctrl)
}

// rawValue возвращает строковое представление JSON-значения.
func rawValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// SetPrompts — замена фрагментов промптов.
func (h *APIHandler) SetPrompts(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req model.PromptFragments
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, h.bundle.T(r.Context(), "error.bad_request"))
		return
	}
	ctrl.SetPrompts(req)
	h.writeState(w, http.StatusOK, ctrl)
}

// --- Recipients ---

// SetGroup — выбор группы получателей. Пустой groupId снимает выбор.
func (h *APIHandler) SetGroup(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req struct {
		GroupID model.FlexString `json:"groupId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, h.bundle.T(r.Context(), "error.bad_request"))
		return
	}
	ctrl.SetGroup(string(req.GroupID))
	h.writeState(w, http.StatusOK, ctrl)
}

// ToggleMember — переключение участника.
func (h *APIHandler) ToggleMember(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.ToggleMember(chi.URLParam(r, "rid"))
	h.writeState(w, http.StatusOK, ctrl)
}

// ToggleSelectAll — переключение «выбрать всех».
func (h *APIHandler) ToggleSelectAll(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.ToggleSelectAll()
	h.writeState(w, http.StatusOK, ctrl)
}

// --- Submission ---

// Submit — отправка запроса генерации. Ответ 202, итог приходит
// в состоянии прогона.
func (h *APIHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.Submit(); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, http.StatusAccepted, ctrl)
}

// --- Results ---

// DownloadArtifact — скачивание одного артефакта в директорию загрузок.
// Необязательное тело {"name": "..."} задаёт имя файла.
func (h *APIHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, h.bundle.T(r.Context(), "error.bad_request"))
		return
	}

	res, err := ctrl.DownloadOne(r.Context(), chi.URLParam(r, "aid"), req.Name)
	if err != nil {
		h.writeDownloadError(w, r, err, "error.download_failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DownloadAll — скачивание архива всех артефактов. Без артефактов — 204.
func (h *APIHandler) DownloadAll(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	res, err := ctrl.DownloadAll(r.Context())
	if err != nil {
		h.writeDownloadError(w, r, err, "error.bundle_failed")
		return
	}
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DownloadSample — скачивание образца бланка ответов.
func (h *APIHandler) DownloadSample(w http.ResponseWriter, r *http.Request) {
	res, err := h.sample.Sample(r.Context())
	if err != nil {
		h.writeDownloadError(w, r, err, "error.sample_failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeDownloadError пишет ошибку скачивания с сообщением по key.
func (h *APIHandler) writeDownloadError(w http.ResponseWriter, r *http.Request, err error, key string) {
	if workflow.KindOf(err) != workflow.KindDownload {
		h.writeError(w, r, err)
		return
	}
	apierrors.WriteError(w, http.StatusBadGateway, workflow.CodeDownloadFailed, h.bundle.T(r.Context(), key))
}

// uploads разбирает multipart-запрос и читает файлы поля field.
// При ошибке пишет ответ и возвращает false.
func (h *APIHandler) uploads(w http.ResponseWriter, r *http.Request, field string) ([]uploadedFile, bool) {
	form, err := h.parseMultipart(w, r)
	if err != nil {
		if errors.Is(err, errPayloadTooLarge) {
			apierrors.PayloadTooLarge(w, h.bundle.T(r.Context(), "error.payload_too_large"))
		} else {
			apierrors.ValidationError(w, h.bundle.T(r.Context(), "error.bad_request"))
		}
		return nil, false
	}
	defer func() { _ = form.RemoveAll() }()

	files, err := readFiles(form, field)
	if err != nil {
		apierrors.ValidationError(w, h.bundle.T(r.Context(), "error.bad_request"))
		return nil, false
	}
	return files, true
}
