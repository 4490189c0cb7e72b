package flatten

import (
	"context"
	"sync"

	"github.com/mii-cds/cdstoolbox/internal/mapping"
)

// DefaultPoolSize is the fixed worker count per spec.md §5's resource
// flattening phase.
const DefaultPoolSize = 4

// workItem pairs one resource with the slot its flattened row is written to.
type workItem struct {
	index    int
	resource mapping.Resource
}

// Pool applies Flatten to many resources concurrently. Ordering between
// resources is not preserved by the workers, but FlattenAll reassembles
// results by original index before returning.
type Pool struct {
	size int
}

// NewPool returns a Pool with the given worker count, or DefaultPoolSize
// when size <= 0.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{size: size}
}

// FlattenAll flattens every resource concurrently across the pool's fixed
// worker count, returning one Row per input resource in input order.
// Cancelling ctx stops dispatch of further work and returns ctx.Err().
func (p *Pool) FlattenAll(ctx context.Context, resources []mapping.Resource) ([]Row, error) {
	results := make([]Row, len(resources))

	queue := make(chan workItem, p.size)
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				results[item.index] = Flatten(item.resource)
			}
		}()
	}

	for i, r := range resources {
		select {
		case <-ctx.Done():
			close(queue)
			wg.Wait()
			return nil, ctx.Err()
		default:
		}
		queue <- workItem{index: i, resource: r}
	}
	close(queue)
	wg.Wait()

	return results, nil
}
