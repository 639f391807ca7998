package domain

import "time"

// Plan — файл плана в каталоге PLANS_DIR.
type Plan struct {
	// Name — имя плана (имя файла без расширения).
	Name string `json:"name"`

	// Path — путь к файлу.
	Path string `json:"path"`

	// Type — тип корневого дескриптора.
	Type string `json:"type"`

	// UpdatedAt — время изменения файла.
	UpdatedAt time.Time `json:"updated_at"`
}
