package models

// Page selects a 1-based page of Size results.
type Page struct {
	Number int64
	Size   int64
}

func (p Page) Skip() int64 {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}
