// guard.go — контроль глобальной уникальности имён файлов.
//
// Проверка "имя свободно" и создание записи разнесены во времени
// (между ними идёт запись на диск), поэтому одной проверки мало:
//   - внутри процесса загрузки одного имени сериализуются (Reserve);
//   - между процессами гонку закрывает ограничение уникальности
//     хранилища метаданных (repository.ErrConflict при Create); запись
//     создаётся до перемещения байт на итоговый путь, поэтому проигравший
//     не затирает чужой файл.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bigkaa/filedesk/internal/repository"
)

// NameGuard — проверка и резервирование имён файлов.
type NameGuard struct {
	records repository.FileRecordRepository

	mu   sync.Mutex
	held map[string]*nameLock
}

// nameLock — блокировка одного имени; refs — число ожидающих и владельцев.
type nameLock struct {
	ch   chan struct{}
	refs int
}

// NewNameGuard создаёт NameGuard поверх репозитория записей.
func NewNameGuard(records repository.FileRecordRepository) *NameGuard {
	return &NameGuard{
		records: records,
		held:    make(map[string]*nameLock),
	}
}

// EnsureUnique проверяет, что имя не занято ни одной записью
// (среди всех владельцев). Занятое имя — NAME_CONFLICT.
func (g *NameGuard) EnsureUnique(ctx context.Context, name string) error {
	_, err := g.records.GetByName(ctx, name)
	switch {
	case err == nil:
		return newError(CodeNameConflict, fmt.Sprintf("файл с именем %q уже существует", name), nil)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return newError(CodeInternal, "ошибка проверки имени файла", err)
	}
}

// Reserve захватывает имя на время загрузки и проверяет его уникальность.
// Возвращённую функцию release нужно вызвать после создания записи
// (или отказа от неё); повторный вызов безопасен.
func (g *NameGuard) Reserve(ctx context.Context, name string) (release func(), err error) {
	l := g.acquireRef(name)

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		g.releaseRef(name, l)
		return nil, newError(CodeInternal, "ожидание резервирования имени прервано", ctx.Err())
	}

	release = sync.OnceFunc(func() {
		<-l.ch
		g.releaseRef(name, l)
	})

	if err := g.EnsureUnique(ctx, name); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func (g *NameGuard) acquireRef(name string) *nameLock {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.held[name]
	if !ok {
		l = &nameLock{ch: make(chan struct{}, 1)}
		g.held[name] = l
	}
	l.refs++
	return l
}

func (g *NameGuard) releaseRef(name string, l *nameLock) {
	g.mu.Lock()
	defer g.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(g.held, name)
	}
}
