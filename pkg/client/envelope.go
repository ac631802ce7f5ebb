package client

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/crm-backoffice-client/pkg/pagination"
)

// listEnvelope is the backoffice list response:
//
//	{"content": [...], "paging": {"page": 1, "size": 100, "total": 240, "has_more": true}}
type listEnvelope struct {
	Content *[]json.RawMessage `json:"content"`
	Paging  pagingInfo         `json:"paging"`
}

type pagingInfo struct {
	Page    *int  `json:"page"`
	Size    *int  `json:"size"`
	Total   *int  `json:"total"`
	HasMore *bool `json:"has_more"`
}

// decodePage normalizes a list envelope into a Page.
//
// Policy for missing paging fields:
//   - total absent: defaults to size, i.e. one page worth of records. This
//     under-reports multi-page results; aggregation never relies on it.
//   - has_more absent: false
//   - page absent: the requested page (1 when none was requested)
//   - size absent: the requested size
func decodePage(body []byte, path string, requestedPage, requestedSize int) (*pagination.Page, error) {
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode list envelope: %w", err)
	}
	if env.Content == nil {
		return nil, &EmptyContentError{Path: path}
	}

	page := &pagination.Page{
		Items:      *env.Content,
		PageNumber: requestedPage,
		PageSize:   requestedSize,
	}
	if page.PageNumber <= 0 {
		page.PageNumber = 1
	}
	if env.Paging.Page != nil && *env.Paging.Page > 0 {
		page.PageNumber = *env.Paging.Page
	}
	if env.Paging.Size != nil && *env.Paging.Size > 0 {
		page.PageSize = *env.Paging.Size
	}
	if env.Paging.HasMore != nil {
		page.HasMore = *env.Paging.HasMore
	}

	total := page.PageSize
	if env.Paging.Total != nil {
		total = *env.Paging.Total
	}
	page.DeclaredTotal = &total

	return page, nil
}

// CustomField is one entry of a backoffice custom_fields list.
type CustomField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FieldsToMap flattens [{"key": k, "value": v}, ...] into {k: v}.
// Later duplicates win.
func FieldsToMap(fields []CustomField) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
