// Package eviction tracks cache key usage order so the store can evict the
// least-recently-used entry in O(1) when it grows past its capacity.
package eviction

// node represents one key inside the recency list.
type node struct {
	key  string
	prev *node
	next *node
}

// LRU is a doubly-linked recency list with a key index. It is not safe for
// concurrent use; callers hold their own lock.
type LRU struct {
	nodes map[string]*node
	head  *node // most recently used
	tail  *node // least recently used
}

// NewLRU returns an empty recency tracker.
func NewLRU() *LRU {
	return &LRU{nodes: make(map[string]*node)}
}

// Touch marks key as most recently used. Unknown keys are ignored.
func (l *LRU) Touch(key string) {
	if n, ok := l.nodes[key]; ok {
		l.unlink(n)
		l.pushFront(n)
	}
}

// Add registers a new key as most recently used. Adding an existing key is
// equivalent to Touch.
func (l *LRU) Add(key string) {
	if _, ok := l.nodes[key]; ok {
		l.Touch(key)
		return
	}
	n := &node{key: key}
	l.nodes[key] = n
	l.pushFront(n)
}

// Remove drops a key that was explicitly invalidated rather than evicted.
func (l *LRU) Remove(key string) {
	if n, ok := l.nodes[key]; ok {
		l.unlink(n)
		delete(l.nodes, key)
	}
}

// Evict removes and returns the least-recently-used key. The second return
// is false when the tracker is empty.
func (l *LRU) Evict() (string, bool) {
	if l.tail == nil {
		return "", false
	}
	k := l.tail.key
	l.unlink(l.tail)
	delete(l.nodes, k)
	return k, true
}

// Len reports the number of tracked keys.
func (l *LRU) Len() int { return len(l.nodes) }

func (l *LRU) pushFront(n *node) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *LRU) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
}
