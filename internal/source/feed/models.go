package feed

import "encoding/json"

// APIResponse is one page of the normalized listing feed. Listings stay raw so
// each record is validated on its own.
type APIResponse struct {
	PageInfo PageInfo          `json:"pageInfo"`
	Listings []json.RawMessage `json:"listings"`
}

type PageInfo struct {
	Page       int `json:"page"`
	NumPages   int `json:"numPages"`
	PageSize   int `json:"pageSize"`
	NumEntries int `json:"numEntries"`
}
