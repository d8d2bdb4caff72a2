// Пакет model — доменные модели filedesk.
// FileRecord — запись метаданных загруженного файла.
package model

import "time"

// MaxNameLength — максимальная длина отображаемого имени файла.
const MaxNameLength = 100

// FileRecord — метаданные одного хранимого файла.
// Запись создаётся только при загрузке и никогда не обновляется:
// переименования и замены содержимого нет.
type FileRecord struct {
	// ID — UUID v4, генерируется при создании
	ID string `json:"id"`

	// Name — имя файла. Уникально глобально (среди всех владельцев)
	// и всегда совпадает с последним сегментом Path.
	Name string `json:"name"`

	// Path — канонический абсолютный путь на диске внутри корня хранилища
	Path string `json:"path"`

	// Size — размер в байтах на момент загрузки
	Size int64 `json:"size"`

	// CreatedAt — время загрузки (UTC)
	CreatedAt time.Time `json:"created_at"`

	// IsDownloadable — разрешено ли скачивание (по умолчанию true)
	IsDownloadable bool `json:"is_downloadable"`

	// OwnerID — UUID владельца. Удаление владельца каскадно удаляет записи.
	OwnerID string `json:"owner_id"`
}

// OwnedBy проверяет, принадлежит ли файл пользователю.
func (f *FileRecord) OwnedBy(userID string) bool {
	return f.OwnerID == userID
}
