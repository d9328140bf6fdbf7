package models

import "time"

// CaptureResult is returned after a photo has been captured and scored
type CaptureResult struct {
	Record       *AnimalRecord `json:"record"`
	ImageSize    int64         `json:"imageSize"`
	HasPreview   bool          `json:"hasPreview"`
	Message      string        `json:"message"`
	DateFromEXIF bool          `json:"dateFromExif"`
	Location     *LocationDto  `json:"location,omitempty"`
}

// RecordListResponse is a page of records, newest first
type RecordListResponse struct {
	Records    []*AnimalRecord `json:"records"`
	Pagination PaginationInfo  `json:"pagination"`
}

// PaginationInfo describes a page within a list
type PaginationInfo struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNext      bool `json:"hasNext"`
	HasPrevious  bool `json:"hasPrevious"`
}

// NewPaginationInfo computes page counts; page is 1-based
func NewPaginationInfo(page, perPage, total int) PaginationInfo {
	if perPage <= 0 {
		perPage = 1
	}
	pages := (total + perPage - 1) / perPage
	return PaginationInfo{
		CurrentPage:  page,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: perPage,
		HasNext:      page < pages,
		HasPrevious:  page > 1,
	}
}

// MarkSyncedResult reports how many records changed state
type MarkSyncedResult struct {
	Updated int `json:"updated"`
}

// DeleteResult reports how many records were removed
type DeleteResult struct {
	Deleted int64 `json:"deleted"`
}

// MessageResponse is a plain confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}
