package api_v1

const (
	// Maximum size, in bytes, of a request body.
	MaxBodySize = 1 << 20

	ContentTypeJSON = "application/json"
)
