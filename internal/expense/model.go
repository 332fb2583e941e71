package expense

import "time"

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

type CategorySummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ListParams struct {
	Limit  int
	Offset int
	Search string
}

type Page struct {
	Total int64
	Items []CategorySummary
}

type Pagination struct {
	Total  int64 `json:"total"`
	Count  int   `json:"count"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}
