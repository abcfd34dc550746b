// results.go — скачивание артефактов и сохранение в директорию загрузок.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/workflow"
	"github.com/bigkaa/goartstore/generation-workbench/internal/storage/savedir"
)

// Имена сохраняемых файлов.
const (
	// ArtifactExt — расширение одиночного артефакта
	ArtifactExt = ".docx"
	// BundleFilename — имя архива со всеми артефактами
	BundleFilename = "answer-sheets.zip"
	// SampleFilename — имя образца бланка
	SampleFilename = "sample-answer-sheet.docx"
)

// Типы скачиваний для метрик.
const (
	downloadSingle = "single"
	downloadBundle = "bundle"
	downloadSample = "sample"
)

// Fetcher — операции скачивания сервиса генерации.
type Fetcher interface {
	FetchArtifact(ctx context.Context, id string) ([]byte, error)
	FetchBundle(ctx context.Context, ids []string) ([]byte, error)
	FetchSample(ctx context.Context) ([]byte, error)
}

// Saver — локальное сохранение скачанного файла.
type Saver interface {
	Save(filename string, reader io.Reader) (*savedir.SaveResult, error)
}

// Downloader — скачивание артефактов и сохранение на диск.
type Downloader struct {
	fetcher Fetcher
	saver   Saver
	logger  *slog.Logger
}

// NewDownloader создаёт Downloader.
func NewDownloader(fetcher Fetcher, saver Saver, logger *slog.Logger) *Downloader {
	return &Downloader{
		fetcher: fetcher,
		saver:   saver,
		logger:  logger.With(slog.String("component", "downloader")),
	}
}

// One скачивает один артефакт и сохраняет как {name}.docx.
// Пустое name заменяется на answer-sheet.
func (d *Downloader) One(ctx context.Context, id, name string) (*savedir.SaveResult, error) {
	if name == "" {
		name = workflow.DefaultArtifactName
	}
	return d.fetchAndSave(downloadSingle, name+ArtifactExt, func() ([]byte, error) {
		return d.fetcher.FetchArtifact(ctx, id)
	})
}

// Bundle скачивает архив всех перечисленных артефактов одним запросом.
func (d *Downloader) Bundle(ctx context.Context, ids []string) (*savedir.SaveResult, error) {
	return d.fetchAndSave(downloadBundle, BundleFilename, func() ([]byte, error) {
		return d.fetcher.FetchBundle(ctx, ids)
	})
}

// Sample скачивает образец бланка ответов.
func (d *Downloader) Sample(ctx context.Context) (*savedir.SaveResult, error) {
	return d.fetchAndSave(downloadSample, SampleFilename, func() ([]byte, error) {
		return d.fetcher.FetchSample(ctx)
	})
}

func (d *Downloader) fetchAndSave(kind, filename string, fetch func() ([]byte, error)) (*savedir.SaveResult, error) {
	data, err := fetch()
	if err != nil {
		downloadsTotal.WithLabelValues(kind, "failure").Inc()
		d.logger.Warn("Скачивание не удалось",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return nil, &workflow.Error{
			Kind:    workflow.KindDownload,
			Code:    workflow.CodeDownloadFailed,
			Message: fmt.Sprintf("скачивание %s", filename),
			Err:     err,
		}
	}

	res, err := d.saver.Save(filename, bytes.NewReader(data))
	if err != nil {
		downloadsTotal.WithLabelValues(kind, "failure").Inc()
		return nil, &workflow.Error{
			Kind:    workflow.KindDownload,
			Code:    workflow.CodeDownloadFailed,
			Message: fmt.Sprintf("сохранение %s", filename),
			Err:     err,
		}
	}

	downloadsTotal.WithLabelValues(kind, "success").Inc()
	d.logger.Info("Файл сохранён",
		slog.String("kind", kind),
		slog.String("name", res.Name),
		slog.Int64("size", res.Size),
	)
	return res, nil
}
