package tags

const (
	// Separator - keyword that separates metric name and tag key-value pairs
	Separator = "TAGS"
	// URI is the name of metrics tag used for request URI
	URI = "uri"
	// Method is the name of the metrics tag used for request Method
	Method = "method"
	// Role is the name of the metrics tag used for request Role
	Role = "role"
	// Status is the name of the metrics tag used for response status code
	Status = "status"
)
