package storage

// chunkApply splits items into pages of at most size, applies op to each page
// sequentially, and concatenates the results in request order. The first
// failing page aborts the rest; pages already applied stay applied, so bulk
// writes built on this are not atomic.
func chunkApply[T, R any](items []T, size int, op func([]T) ([]R, error)) ([]R, error) {
	if size <= 0 {
		panic("chunkApply: page size must be positive")
	}
	results := make([]R, 0, len(items))
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		page, err := op(items[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, page...)
	}
	return results, nil
}
