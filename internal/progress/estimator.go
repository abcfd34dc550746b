// Пакет progress — имитация индикатора прогресса для запроса без
// промежуточных событий от сервиса.
//
// Пока запрос выполняется, индикатор растёт на случайный шаг по тикеру
// и ограничен потолком Cap. Settle останавливает тикер, дожидается
// завершения его горутины, выставляет 100 и через DisplayWindow
// сбрасывает значение в 0.
package progress

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Значения по умолчанию.
const (
	DefaultInterval      = 500 * time.Millisecond
	DefaultCap           = 90
	DefaultMaxStep       = 10
	DefaultDisplayWindow = 1500 * time.Millisecond
)

// Config — параметры индикатора.
type Config struct {
	// Interval — период тикера
	Interval time.Duration
	// Cap — потолок, пока запрос не завершён (0..100)
	Cap int
	// MaxStep — верхняя граница шага (шаг в [0, MaxStep))
	MaxStep int
	// DisplayWindow — сколько держится 100 перед сбросом в 0
	DisplayWindow time.Duration
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{
		Interval:      DefaultInterval,
		Cap:           DefaultCap,
		MaxStep:       DefaultMaxStep,
		DisplayWindow: DefaultDisplayWindow,
	}
}

// normalize подставляет значения по умолчанию вместо некорректных.
func (c Config) normalize() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Cap <= 0 || c.Cap > 100 {
		c.Cap = DefaultCap
	}
	if c.MaxStep <= 0 {
		c.MaxStep = DefaultMaxStep
	}
	if c.DisplayWindow < 0 {
		c.DisplayWindow = DefaultDisplayWindow
	}
	return c
}

// Option — функциональная опция Estimator.
type Option func(*Estimator)

// WithRand задаёт источник случайных чисел в [0, 1).
func WithRand(fn func() float64) Option {
	return func(e *Estimator) { e.rand = fn }
}

// WithLogger задаёт логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Estimator) { e.logger = logger.With(slog.String("component", "progress")) }
}

// Estimator — индикатор прогресса одного workflow.
// Потокобезопасен.
type Estimator struct {
	cfg      Config
	rand     func() float64
	onChange func(int)
	logger   *slog.Logger

	mu      sync.Mutex
	value   int
	gen     uint64
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	reset   *time.Timer
}

// New создаёт индикатор. onChange вызывается при каждом изменении
// значения под внутренней блокировкой: он не должен блокироваться
// и вызывать методы Estimator. onChange может быть nil.
func New(cfg Config, onChange func(int), opts ...Option) *Estimator {
	e := &Estimator{
		cfg:      cfg.normalize(),
		rand:     rand.Float64,
		onChange: onChange,
		logger:   slog.Default().With(slog.String("component", "progress")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Value возвращает текущее значение индикатора [0, 100].
func (e *Estimator) Value() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Running — тикер запущен (запрос не завершён).
func (e *Estimator) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start сбрасывает индикатор в 0 и запускает тикер. Повторный вызов
// во время работы ничего не делает.
func (e *Estimator) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}
	if e.reset != nil {
		e.reset.Stop()
		e.reset = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.gen++
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	e.set(0)

	go e.run(ctx, e.gen, e.done)
	e.logger.Debug("Индикатор прогресса запущен", slog.Uint64("generation", e.gen))
}

// Settle останавливает тикер и дожидается завершения его горутины,
// затем выставляет 100 и планирует сброс в 0 через DisplayWindow.
// Без запущенного тикера ничего не делает.
func (e *Estimator) Settle() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	cancel()
	<-done

	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(100)
	gen := e.gen
	e.reset = time.AfterFunc(e.cfg.DisplayWindow, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gen != gen || e.running {
			return
		}
		e.reset = nil
		e.set(0)
	})
	e.logger.Debug("Индикатор прогресса завершён", slog.Uint64("generation", gen))
}

// Close останавливает тикер и отложенный сброс без изменения значения.
func (e *Estimator) Close() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.running = false
	e.cancel, e.done = nil, nil
	if e.reset != nil {
		e.reset.Stop()
		e.reset = nil
	}
	e.gen++
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// run — горутина тикера одного запуска.
func (e *Estimator) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			if !e.running || e.gen != gen {
				e.mu.Unlock()
				return
			}
			step := int(e.rand() * float64(e.cfg.MaxStep))
			e.set(min(e.value+max(step, 0), e.cfg.Cap))
			e.mu.Unlock()
		}
	}
}

// set меняет значение и уведомляет подписчика. Вызывается под e.mu.
func (e *Estimator) set(v int) {
	v = min(max(v, 0), 100)
	if v == e.value {
		return
	}
	e.value = v
	if e.onChange != nil {
		e.onChange(v)
	}
}
