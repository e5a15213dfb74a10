package port

import "context"

// ArchiveObject один артефакт прогона для загрузки в архив.
type ArchiveObject struct {
	Key         string
	ContentType string
	Body        []byte
	// Labels сохраняются как пользовательские метаданные объекта
	Labels map[string]string
}

// ReportStorage определяет интерфейс для архивации отчетов и CSV выгрузок.
type ReportStorage interface {
	// PutObject загружает объект и возвращает URL для чтения.
	PutObject(ctx context.Context, object ArchiveObject) (string, error)
}
