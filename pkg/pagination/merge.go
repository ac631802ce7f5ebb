package pagination

import (
	"encoding/json"
	"maps"
	"slices"
)

// Merge concatenates the items of pages in ascending page-number order.
// PageCount is the highest page number present and Total is the number of
// merged items; declared totals are ignored.
func Merge(pages map[int]*Page) *AggregateResult {
	numbers := slices.Sorted(maps.Keys(pages))

	size := 0
	for _, n := range numbers {
		size += pages[n].Len()
	}

	items := make([]json.RawMessage, 0, size)
	for _, n := range numbers {
		if pages[n] != nil {
			items = append(items, pages[n].Items...)
		}
	}

	res := &AggregateResult{
		Items: items,
		Total: len(items),
	}
	if len(numbers) > 0 {
		res.PageCount = numbers[len(numbers)-1]
	}
	return res
}
