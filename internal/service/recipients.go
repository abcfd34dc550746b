// recipients.go — MemberCache: LRU-кэш участников групп с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

// MemberCache — кэш списков участников по идентификатору группы.
// Общий для всех прогонов workflow процесса.
type MemberCache struct {
	cache *expirable.LRU[string, []model.Recipient]
}

// NewMemberCache создаёт кэш с максимальным числом групп maxSize
// и временем жизни записи ttl.
func NewMemberCache(maxSize int, ttl time.Duration) *MemberCache {
	return &MemberCache{
		cache: expirable.NewLRU[string, []model.Recipient](maxSize, nil, ttl),
	}
}

// Get возвращает копию списка участников группы.
func (c *MemberCache) Get(groupID string) ([]model.Recipient, bool) {
	if c == nil {
		return nil, false
	}
	members, ok := c.cache.Get(groupID)
	if !ok {
		membersCacheMisses.Inc()
		return nil, false
	}
	membersCacheHits.Inc()
	return slices.Clone(members), true
}

// Set сохраняет копию списка участников группы.
func (c *MemberCache) Set(groupID string, members []model.Recipient) {
	if c == nil {
		return
	}
	c.cache.Add(groupID, slices.Clone(members))
}

// Invalidate удаляет группу из кэша.
func (c *MemberCache) Invalidate(groupID string) {
	if c == nil {
		return
	}
	c.cache.Remove(groupID)
}

// Len возвращает количество закэшированных групп.
func (c *MemberCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
