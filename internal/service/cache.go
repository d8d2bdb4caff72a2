// cache.go — LRU-кэш записей о файлах с TTL для скачивания по ID.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filedesk/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_record_cache_hits_total",
		Help: "Общее количество попаданий в кэш записей о файлах.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_record_cache_misses_total",
		Help: "Общее количество промахов кэша записей о файлах.",
	})
)

// RecordCache — кэш записей по ID. Записи неизменяемы,
// поэтому инвалидация нужна только при удалении.
type RecordCache struct {
	cache *expirable.LRU[string, *model.FileRecord]
}

// NewRecordCache создаёт кэш на maxSize записей с временем жизни ttl.
func NewRecordCache(maxSize int, ttl time.Duration) *RecordCache {
	return &RecordCache{
		cache: expirable.NewLRU[string, *model.FileRecord](maxSize, nil, ttl),
	}
}

// Get возвращает запись из кэша.
func (c *RecordCache) Get(fileID string) (*model.FileRecord, bool) {
	val, ok := c.cache.Get(fileID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет запись в кэш.
func (c *RecordCache) Set(record *model.FileRecord) {
	c.cache.Add(record.ID, record)
}

// Delete удаляет запись из кэша.
func (c *RecordCache) Delete(fileID string) {
	c.cache.Remove(fileID)
}
