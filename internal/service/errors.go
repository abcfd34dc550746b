// errors.go — ошибки сервисного слоя.
package service

import "errors"

var (
	// ErrSessionNotFound — прогон workflow не найден или истёк.
	ErrSessionNotFound = errors.New("прогон workflow не найден")
	// ErrArtifactNotFound — артефакт отсутствует в Result Collector.
	ErrArtifactNotFound = errors.New("артефакт не найден")
)
