package dedupe

import (
	"sync"
)

// SeenCache 有界的内存去重缓存：容量固定，超出后淘汰最旧的ID。
// 只是快速跳过用的缓存，不承担正确性——进程重启即丢失，
// 权威去重靠trades表的幂等upsert。
type SeenCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]struct{}
	order    []string // 按插入顺序的环形队列
	head     int
}

// NewSeenCache 创建去重缓存；capacity<=0时取1024
func NewSeenCache(capacity int) *SeenCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &SeenCache{
		capacity: capacity,
		items:    make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Seen 返回id是否已见过；未见过则记录（满了先淘汰最旧的）
func (c *SeenCache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; ok {
		return true
	}

	if len(c.order) < c.capacity {
		c.order = append(c.order, id)
	} else {
		// 覆盖最旧位置
		oldest := c.order[c.head]
		delete(c.items, oldest)
		c.order[c.head] = id
		c.head = (c.head + 1) % c.capacity
	}
	c.items[id] = struct{}{}
	return false
}

// Len 当前缓存条数（测试用）
func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
