// Пакет service — бизнес-логика Order Module.
// CacheService — LRU-кэш заявок с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "om_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш заявок.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "om_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша заявок.",
	})
)

// CacheService — LRU-кэш заявок с автоматическим TTL.
// Каждый экземпляр модуля имеет собственный in-memory кэш
// (per-instance, stateless архитектура). Записи инвалидируются
// при любой мутации заявки.
type CacheService struct {
	cache *expirable.LRU[string, *model.PrintRequest]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.PrintRequest](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает заявку из кэша по id.
// Возвращает (заявка, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(id string) (*model.PrintRequest, bool) {
	val, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет заявку в кэше.
func (c *CacheService) Set(id string, req *model.PrintRequest) {
	c.cache.Add(id, req)
}

// Delete удаляет заявку из кэша (инвалидация при мутации).
func (c *CacheService) Delete(id string) {
	c.cache.Remove(id)
}
