package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Pagebind/internal/telemetry"
)

// cronParser — парсер cron-выражений обновления.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRefresh, expr, err)
	}
	return nil
}

// NextRefresh вычисляет следующее время обновления после from.
func NextRefresh(expr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidRefresh, expr, err)
	}
	return schedule.Next(from), nil
}

// Refresher периодически загружает http источники с выражением refresh.
//
// Запуск одного источника пропускается, если предыдущая загрузка
// ещё не завершилась.
type Refresher struct {
	manager *Manager
	logger  *slog.Logger
	cron    *cron.Cron
	jobs    map[string]cron.EntryID
}

// NewRefresher регистрирует задания для источников менеджера.
func NewRefresher(m *Manager, logger *slog.Logger) (*Refresher, error) {
	r := &Refresher{
		manager: m,
		logger:  telemetry.OrDiscard(logger),
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		jobs: make(map[string]cron.EntryID),
	}

	for _, src := range m.Sources() {
		expr := src.Config().Refresh
		if expr == "" {
			continue
		}
		if _, ok := src.(Fetcher); !ok {
			r.logger.Warn("refresh ignored for non-http data source", "source_id", src.ID())
			continue
		}

		id := src.ID()
		entryID, err := r.cron.AddFunc(expr, func() { r.refresh(id) })
		if err != nil {
			return nil, fmt.Errorf("data source %s: %w %q: %v", id, ErrInvalidRefresh, expr, err)
		}
		r.jobs[id] = entryID
	}

	return r, nil
}

// Len возвращает количество зарегистрированных заданий.
func (r *Refresher) Len() int {
	return len(r.jobs)
}

// Next возвращает время следующего обновления источника.
// Нулевое время — источник не обновляется или планировщик не запущен.
func (r *Refresher) Next(sourceID string) time.Time {
	entryID, ok := r.jobs[sourceID]
	if !ok {
		return time.Time{}
	}
	return r.cron.Entry(entryID).Next
}

// Start запускает планировщик в фоне.
func (r *Refresher) Start() {
	if len(r.jobs) == 0 {
		return
	}
	r.logger.Info("data source refresher started", "jobs", len(r.jobs))
	r.cron.Start()
}

// Stop останавливает планировщик и ждёт завершения текущих загрузок
// или отмены ctx.
func (r *Refresher) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (r *Refresher) refresh(sourceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultHTTPTimeout)
	defer cancel()

	if err := r.manager.Fetch(ctx, sourceID); err != nil {
		r.logger.Warn("data source refresh failed", "source_id", sourceID, "error", err)
		return
	}
	r.logger.Debug("data source refreshed", "source_id", sourceID)
}
