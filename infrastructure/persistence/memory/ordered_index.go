package memory

import (
	"time"

	"github.com/tidwall/btree"
)

// orderKey sorts records by creation time, then id
type orderKey struct {
	createdAt int64
	id        string
}

func orderKeyLess(a, b orderKey) bool {
	if a.createdAt != b.createdAt {
		return a.createdAt < b.createdAt
	}
	return a.id < b.id
}

// orderedIndex keeps record ids in creation order so listings are stable
type orderedIndex struct {
	tree *btree.BTreeG[orderKey]
}

func newOrderedIndex() *orderedIndex {
	return &orderedIndex{tree: btree.NewBTreeG[orderKey](orderKeyLess)}
}

func (o *orderedIndex) add(id string, createdAt time.Time) {
	o.tree.Set(orderKey{createdAt: createdAt.UnixNano(), id: id})
}

func (o *orderedIndex) remove(id string, createdAt time.Time) {
	o.tree.Delete(orderKey{createdAt: createdAt.UnixNano(), id: id})
}

func (o *orderedIndex) each(fn func(id string) bool) {
	o.tree.Scan(func(k orderKey) bool {
		return fn(k.id)
	})
}
