package pipeline

// Schedule slices a manifest of the given size into contiguous batches of at
// most batchSize documents each, in manifest order. It is deterministic and
// covers [0, total) exactly once with no gaps or overlaps.
func Schedule(total, batchSize int) []Batch {
	if total <= 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	batches := make([]Batch, 0, (total+batchSize-1)/batchSize)
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		batches = append(batches, Batch{Start: start, End: end})
	}
	return batches
}
