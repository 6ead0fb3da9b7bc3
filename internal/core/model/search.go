package model

// SearchHit is one ranked result of an encyclopedia search.
type SearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	PageID  int    `json:"pageId"`
}
