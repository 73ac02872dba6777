package listing

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/modal"
)

// rowCache keeps the last list each session saw, so dialog pages and
// rejected submissions can redraw the table without another fetch.
type rowCache struct {
	rows    *expirable.LRU[string, []entity.Record]
	options *expirable.LRU[string, []modal.Option]
}

func newRowCache(size int, ttl time.Duration) *rowCache {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &rowCache{
		rows:    expirable.NewLRU[string, []entity.Record](size, nil, ttl),
		options: expirable.NewLRU[string, []modal.Option](size, nil, ttl),
	}
}

func cacheKey(tag entity.Tag, token string) string {
	return tag.String() + "|" + token
}

func (c *rowCache) getRows(tag entity.Tag, token string) ([]entity.Record, bool) {
	return c.rows.Get(cacheKey(tag, token))
}

func (c *rowCache) putRows(tag entity.Tag, token string, rows []entity.Record) {
	c.rows.Add(cacheKey(tag, token), rows)
}

func (c *rowCache) getOptions(tag entity.Tag, token string) ([]modal.Option, bool) {
	return c.options.Get(cacheKey(tag, token))
}

func (c *rowCache) putOptions(tag entity.Tag, token string, opts []modal.Option) {
	c.options.Add(cacheKey(tag, token), opts)
}

// invalidate drops every cached list and option set of tag, for all sessions.
func (c *rowCache) invalidate(tag entity.Tag) {
	prefix := tag.String() + "|"
	for _, key := range c.rows.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.rows.Remove(key)
		}
	}
	for _, key := range c.options.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.options.Remove(key)
		}
	}
}
