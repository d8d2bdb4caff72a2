package model

import "time"

// User — пользователь, известный filedesk. Аутентификацией занимается
// внешний провайдер: здесь хранится только идентификатор (sub из JWT),
// на который ссылаются записи файлов.
type User struct {
	// ID — UUID пользователя (sub из JWT)
	ID string `json:"id"`
	// CreatedAt — время первого появления пользователя
	CreatedAt time.Time `json:"created_at"`
}
