// controller.go — Controller: асинхронный драйвер одного прогона workflow.
//
// Все переходы состояния выполняются под одним мьютексом. Сетевые
// вызовы идут в горутинах и возвращаются в состояние только через
// переходы с токеном: устаревшие ответы отбрасываются, вызовы не
// отменяются. Подписчики получают сигнал об изменении через буферизованный
// канал и читают актуальный снимок через Snapshot.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/workflow"
	"github.com/bigkaa/goartstore/generation-workbench/internal/genclient"
	"github.com/bigkaa/goartstore/generation-workbench/internal/progress"
	"github.com/bigkaa/goartstore/generation-workbench/internal/storage/savedir"
)

// Backend — операции сервиса анализа и генерации, нужные контроллеру.
type Backend interface {
	Analyze(ctx context.Context, doc model.SourceDocument) ([]model.PreviewItem, error)
	ListGroups(ctx context.Context) ([]model.RecipientGroup, error)
	ListMembers(ctx context.Context, groupID string) ([]model.Recipient, error)
	Settings(ctx context.Context) (model.PromptFragments, error)
	Generate(ctx context.Context, req model.GenerationRequest) (*genclient.GenerateResult, error)
}

// Translator — локализация уведомлений.
type Translator interface {
	Translatef(lang, key string, args ...any) string
}

// ControllerDeps — зависимости Controller.
type ControllerDeps struct {
	Backend    Backend
	Members    *MemberCache
	Downloader *Downloader
	Translator Translator
	// Lang — язык уведомлений прогона
	Lang            string
	Progress        progress.Config
	ProgressOptions []progress.Option
	Logger          *slog.Logger
}

// Controller — один прогон workflow.
type Controller struct {
	id         string
	createdAt  time.Time
	backend    Backend
	members    *MemberCache
	downloader *Downloader
	tr         Translator
	lang       string
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	mu    sync.Mutex
	state workflow.State

	estimator *progress.Estimator

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController создаёт прогон workflow в начальном состоянии.
// Группы и промпты не загружаются: для этого вызывается Load или Start.
func NewController(id string, deps ControllerDeps) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:         id,
		createdAt:  time.Now(),
		backend:    deps.Backend,
		members:    deps.Members,
		downloader: deps.Downloader,
		tr:         deps.Translator,
		lang:       deps.Lang,
		logger:     deps.Logger.With(slog.String("component", "controller"), slog.String("workflow_id", id)),
		now:        time.Now,
		newID:      uuid.NewString,
		state:      workflow.New(),
		subs:       make(map[chan struct{}]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	opts := append([]progress.Option{progress.WithLogger(deps.Logger)}, deps.ProgressOptions...)
	c.estimator = progress.New(deps.Progress, func(int) { c.notify() }, opts...)
	return c
}

// ID возвращает идентификатор прогона.
func (c *Controller) ID() string { return c.id }

// CreatedAt возвращает время создания прогона.
func (c *Controller) CreatedAt() time.Time { return c.createdAt }

// Lang возвращает язык уведомлений прогона.
func (c *Controller) Lang() string { return c.lang }

// Start запускает фоновую загрузку групп и промптов.
func (c *Controller) Start() {
	c.spawn(func(ctx context.Context) {
		if err := c.Load(ctx); err != nil {
			c.logger.Warn("Начальная загрузка выполнена частично", slog.String("error", err.Error()))
		}
	})
}

// Load параллельно загружает группы получателей и фрагменты промптов.
// Успешная часть применяется даже при ошибке другой.
func (c *Controller) Load(ctx context.Context) error {
	var (
		g           errgroup.Group
		groups      []model.RecipientGroup
		prompts     model.PromptFragments
		groupsErr   error
		settingsErr error
	)
	g.Go(func() error {
		groups, groupsErr = c.backend.ListGroups(ctx)
		return groupsErr
	})
	g.Go(func() error {
		prompts, settingsErr = c.backend.Settings(ctx)
		return settingsErr
	})
	_ = g.Wait()

	c.update(func(s workflow.State) workflow.State {
		if groupsErr != nil {
			s = s.FailGroups(c.failureMessage(groupsErr, "error.groups_failed"))
		} else {
			s = s.SetGroups(groups)
		}
		if settingsErr != nil {
			s = s.WithNotice(workflow.Notice{
				Kind:    workflow.NoticeError,
				Message: c.failureMessage(settingsErr, "error.settings_failed"),
			})
		} else if s.Prompts == (model.PromptFragments{}) {
			s = s.SetPrompts(prompts)
		}
		return s
	})

	return errors.Join(groupsErr, settingsErr)
}

// Snapshot возвращает копию состояния с текущим значением индикатора.
func (c *Controller) Snapshot() workflow.State {
	c.mu.Lock()
	s := c.state.Clone()
	c.mu.Unlock()
	return s.WithProgress(c.estimator.Value())
}

// --- Intake ---

// SetDocument заменяет основной документ и запускает анализ.
// Неверный тип или размер возвращает InvalidInput без сетевого вызова.
func (c *Controller) SetDocument(doc model.SourceDocument) error {
	c.mu.Lock()
	next, err := c.state.SetPrimaryDocument(doc)
	if err != nil {
		c.state = c.state.WithError(c.localize(err))
		c.mu.Unlock()
		c.notify()
		return err
	}
	next, token, err := next.ClearMessages().BeginAnalysis()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.mu.Unlock()
	c.notify()

	c.logger.Info("Основной документ выбран",
		slog.String("name", doc.Name),
		slog.Int64("size", doc.Size),
		slog.Uint64("token", token),
	)
	c.spawn(func(ctx context.Context) { c.analyze(ctx, token, doc) })
	return nil
}

// Reanalyze повторно запускает анализ текущего документа.
func (c *Controller) Reanalyze() error {
	c.mu.Lock()
	next, token, err := c.state.BeginAnalysis()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	doc := *next.Document
	c.mu.Unlock()
	c.notify()

	c.spawn(func(ctx context.Context) { c.analyze(ctx, token, doc) })
	return nil
}

// RemoveDocument удаляет основной документ вместе с preview.
func (c *Controller) RemoveDocument() {
	c.update(func(s workflow.State) workflow.State { return s.RemovePrimaryDocument() })
}

// AddAttachments добавляет допустимые вложения и возвращает отклонённые.
func (c *Controller) AddAttachments(files []model.Attachment) []workflow.Rejection {
	var rejected []workflow.Rejection
	c.update(func(s workflow.State) workflow.State {
		s, rejected = s.AddAttachments(files)
		if len(rejected) > 0 {
			s = s.WithNotice(workflow.Notice{
				Kind:    workflow.NoticeError,
				Code:    rejected[0].Err.Code,
				Message: c.tr.Translatef(c.lang, "notice.attachments_rejected", len(rejected)),
			})
		}
		return s
	})
	return rejected
}

// RemoveAttachment удаляет вложение по индексу.
func (c *Controller) RemoveAttachment(index int) {
	c.update(func(s workflow.State) workflow.State { return s.RemoveAttachment(index) })
}

// SetOverride задаёт количество для элемента preview.
func (c *Controller) SetOverride(id model.ItemID, raw string) {
	c.update(func(s workflow.State) workflow.State { return s.SetOverride(id, raw) })
}

// SetPrompts заменяет фрагменты промптов.
func (c *Controller) SetPrompts(p model.PromptFragments) {
	c.update(func(s workflow.State) workflow.State { return s.SetPrompts(p) })
}

// --- Recipients ---

// SetGroup выбирает группу получателей. Участники берутся из кэша
// или загружаются асинхронно.
func (c *Controller) SetGroup(id string) {
	c.mu.Lock()
	next, token := c.state.SetGroup(id)
	if token != 0 {
		if members, ok := c.members.Get(id); ok {
			next, _ = next.ApplyMembers(token, members)
			token = 0
		}
	}
	c.state = next
	c.mu.Unlock()
	c.notify()

	if token != 0 {
		c.spawn(func(ctx context.Context) { c.loadMembers(ctx, token, id) })
	}
}

// ToggleMember переключает участника в выборе.
func (c *Controller) ToggleMember(id string) {
	c.update(func(s workflow.State) workflow.State { return s.ToggleMember(id) })
}

// ToggleSelectAll переключает «выбрать всех».
func (c *Controller) ToggleSelectAll() {
	c.update(func(s workflow.State) workflow.State { return s.ToggleSelectAll() })
}

// --- Submission ---

// Submit строит снимок запроса и отправляет его асинхронно.
// ValidationError попадает в видимый слот ошибки; повторная отправка
// во время выполняющейся отклоняется с ErrSubmissionInFlight.
func (c *Controller) Submit() error {
	c.mu.Lock()
	next, req, err := c.state.BeginSubmission(c.newID(), c.now())
	if err != nil {
		if workflow.KindOf(err) == workflow.KindValidation {
			c.state = c.state.WithError(c.localize(err))
		}
		c.mu.Unlock()
		c.notify()
		submissionsTotal.WithLabelValues("rejected").Inc()
		return err
	}
	c.state = next
	c.mu.Unlock()

	c.estimator.Start()
	c.notify()

	c.logger.Info("Запрос генерации отправлен",
		slog.String("request_id", req.ID()),
		slog.String("group_id", req.GroupID()),
		slog.String("mode", string(req.Mode())),
		slog.Int("members", len(req.MemberIDs())),
	)
	c.spawn(func(ctx context.Context) { c.generate(ctx, req) })
	return nil
}

// --- Results ---

// DownloadOne скачивает артефакт и сохраняет как {name}.docx.
// Пустое name заменяется именем получателя, затем answer-sheet.
func (c *Controller) DownloadOne(ctx context.Context, id, name string) (*savedir.SaveResult, error) {
	c.mu.Lock()
	ref, _, ok := c.state.Artifact(id)
	c.mu.Unlock()
	if !ok {
		return nil, ErrArtifactNotFound
	}
	if name == "" {
		name = ref.RecipientName
	}

	res, err := c.downloader.One(ctx, id, name)
	c.afterDownload(res, err, "error.download_failed")
	return res, err
}

// DownloadAll скачивает все артефакты одним архивом. С пустым
// списком артефактов ничего не делает и возвращает nil, nil.
func (c *Controller) DownloadAll(ctx context.Context) (*savedir.SaveResult, error) {
	c.mu.Lock()
	ids := c.state.ArtifactIDs()
	c.mu.Unlock()
	if len(ids) == 0 {
		return nil, nil
	}

	res, err := c.downloader.Bundle(ctx, ids)
	c.afterDownload(res, err, "error.bundle_failed")
	return res, err
}

// afterDownload фиксирует итог скачивания в уведомлении.
// Список артефактов не меняется.
func (c *Controller) afterDownload(res *savedir.SaveResult, err error, failKey string) {
	var notice workflow.Notice
	if err != nil {
		notice = workflow.Notice{
			Kind:    workflow.NoticeError,
			Code:    workflow.CodeDownloadFailed,
			Message: c.tr.Translatef(c.lang, failKey),
		}
	} else {
		notice = workflow.Notice{
			Kind:    workflow.NoticeSuccess,
			Message: c.tr.Translatef(c.lang, "notice.download_saved", res.Name),
		}
	}
	c.update(func(s workflow.State) workflow.State { return s.WithNotice(notice) })
}

// --- Subscriptions and lifecycle ---

// Subscribe возвращает канал сигналов об изменении состояния и
// функцию отписки. Сигналы не накапливаются: буфер канала — один.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	return ch, func() {
		c.subsMu.Lock()
		delete(c.subs, ch)
		c.subsMu.Unlock()
	}
}

// Done закрывается при Close.
func (c *Controller) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Wait дожидается завершения всех фоновых операций.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close завершает прогон: отменяет фоновые вызовы и останавливает
// индикатор. Не дожидается горутин.
func (c *Controller) Close() {
	c.cancel()
	c.estimator.Close()
	c.logger.Debug("Прогон workflow закрыт")
}

// --- internal ---

// update применяет переход под блокировкой и уведомляет подписчиков.
func (c *Controller) update(fn func(workflow.State) workflow.State) {
	c.mu.Lock()
	c.state = fn(c.state)
	c.mu.Unlock()
	c.notify()
}

// notify — неблокирующая рассылка сигнала подписчикам.
// Вызывается из колбэка индикатора, поэтому не берёт c.mu.
func (c *Controller) notify() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Controller) spawn(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

func (c *Controller) analyze(ctx context.Context, token uint64, doc model.SourceDocument) {
	items, err := c.backend.Analyze(ctx, doc)

	c.mu.Lock()
	var applied bool
	if err != nil {
		c.state, applied = c.state.FailAnalysis(token, c.failureMessage(err, "error.analysis_failed"))
	} else {
		c.state, applied = c.state.ApplyAnalysis(token, items)
	}
	failed := c.state.Preview.Error != ""
	c.mu.Unlock()

	switch {
	case !applied:
		analysesTotal.WithLabelValues("stale").Inc()
		c.logger.Debug("Устаревший результат анализа отброшен", slog.Uint64("token", token))
		return
	case failed:
		analysesTotal.WithLabelValues("failure").Inc()
		if err != nil {
			c.logger.Warn("Анализ документа не удался",
				slog.String("name", doc.Name),
				slog.String("error", err.Error()),
			)
		}
	default:
		analysesTotal.WithLabelValues("success").Inc()
		c.logger.Info("Анализ документа завершён",
			slog.String("name", doc.Name),
			slog.Int("items", len(items)),
		)
	}
	c.notify()
}

func (c *Controller) loadMembers(ctx context.Context, token uint64, groupID string) {
	members, err := c.backend.ListMembers(ctx, groupID)
	if err == nil {
		c.members.Set(groupID, members)
	}

	c.mu.Lock()
	var applied bool
	if err != nil {
		c.state, applied = c.state.FailMembers(token, c.failureMessage(err, "error.members_failed"))
	} else {
		c.state, applied = c.state.ApplyMembers(token, members)
	}
	c.mu.Unlock()

	if !applied {
		c.logger.Debug("Устаревший список участников отброшен",
			slog.String("group_id", groupID),
			slog.Uint64("token", token),
		)
		return
	}
	if err != nil {
		c.logger.Warn("Загрузка участников не удалась",
			slog.String("group_id", groupID),
			slog.String("error", err.Error()),
		)
	}
	c.notify()
}

func (c *Controller) generate(ctx context.Context, req model.GenerationRequest) {
	start := time.Now()
	res, err := c.backend.Generate(ctx, req)
	submissionDuration.Observe(time.Since(start).Seconds())

	// Settle дожидается горутины тикера, поэтому вызывается без c.mu.
	c.estimator.Settle()

	c.mu.Lock()
	if err != nil {
		c.state = c.state.FailSubmission(c.failureMessage(err, "error.generation_failed"))
	} else {
		notice := workflow.Notice{
			Kind:    workflow.NoticeSuccess,
			Message: c.tr.Translatef(c.lang, "notice.generation_success", res.Count),
		}
		c.state = c.state.CompleteSubmission(workflow.DeriveArtifacts(res.Artifacts), notice)
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		status := "network_error"
		var remote *genclient.RemoteError
		if errors.As(err, &remote) {
			status = "remote_error"
		}
		submissionsTotal.WithLabelValues(status).Inc()
		c.logger.Warn("Генерация не удалась",
			slog.String("request_id", req.ID()),
			slog.String("error", err.Error()),
		)
		return
	}
	submissionsTotal.WithLabelValues("success").Inc()
}

// failureMessage возвращает текст ошибки сервиса для пользователя:
// сообщение сервиса без изменений, иначе локализованный текст по
// fallbackKey, а при недоступности сервиса — общее сетевое сообщение.
func (c *Controller) failureMessage(err error, fallbackKey string) string {
	var remote *genclient.RemoteError
	if errors.As(err, &remote) {
		if remote.Message != "" {
			return remote.Message
		}
		return c.tr.Translatef(c.lang, fallbackKey)
	}
	return c.tr.Translatef(c.lang, "error.network")
}

// localize возвращает локализованный текст ошибки workflow по её коду.
func (c *Controller) localize(err error) string {
	return LocalizeError(c.tr, c.lang, err, "")
}

// LocalizeError переводит ошибку workflow по ключу error.{Code}.
// arg подставляется в сообщения о конкретном файле. Для ошибок без
// кода или без перевода возвращается текст самой ошибки.
func LocalizeError(tr Translator, lang string, err error, arg string) string {
	code := workflow.CodeOf(err)
	if code == "" {
		return err.Error()
	}
	key := "error." + code
	var msg string
	if arg != "" {
		msg = tr.Translatef(lang, key, arg)
	} else {
		msg = tr.Translatef(lang, key)
	}
	if msg == key {
		return err.Error()
	}
	return msg
}
