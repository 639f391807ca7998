package services

import (
	"io"
	"net/http"
)

// Имена встроенных сервисов.
const (
	NameHTTP      = "http"
	NameDelay     = "delay"
	NamePrint     = "print"
	NameTransform = "transform"
	NameCache     = "cache"
	NamePublish   = "publish"
)

// Config — зависимости встроенных сервисов. Нулевые поля получают значения по умолчанию.
type Config struct {
	// HTTPClient — клиент сервиса http.
	HTTPClient *http.Client

	// Out — вывод сервиса print (по умолчанию os.Stdout).
	Out io.Writer

	// Cache — хранилище сервиса cache (по умолчанию MemoryCache).
	Cache CacheStore

	// Publisher — брокер сервиса publish. Без него publish возвращает ErrNoPublisher.
	Publisher EventPublisher
}

// Builtin возвращает встроенные сервисы для work.WithServices.
func Builtin(cfg Config) map[string]any {
	return map[string]any{
		NameHTTP:      NewHTTP(cfg.HTTPClient),
		NameDelay:     Delay{},
		NamePrint:     NewPrint(cfg.Out),
		NameTransform: Transform{},
		NameCache:     NewCache(cfg.Cache),
		NamePublish:   NewPublish(cfg.Publisher),
	}
}
