package client

// ChatTurn is one message of a chat conversation
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DeliveryOutcome is the transport-level result of a webhook delivery.
type DeliveryOutcome struct {
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	Response   string `json:"response,omitempty"`
}

// extractionRequest is the JSON body sent alongside the uploaded file
type extractionRequest struct {
	Query  string           `json:"query"`
	Params extractionParams `json:"params"`
}

type extractionParams struct {
	Mode string `json:"mode"`
}
