package poller

// ApiResponse models the top-level structure of the upstream API's paged responses.
type ApiResponse[T any] struct {
	Code int `json:"code"`
	Data struct {
		Page     int `json:"page"`
		PageSize int `json:"pageSize"`
		Total    int `json:"total"`
		Items    []T `json:"items"`
	} `json:"data"`
}
