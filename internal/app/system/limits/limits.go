// internal/app/system/limits/limits.go
package limits

// Request body size limits. These prevent memory exhaustion from oversized
// requests.
const (
	// MaxUploadBytes is the default cap on a whole send request including
	// every attachment. Overridable with upload_max_bytes.
	MaxUploadBytes = 50 << 20 // 50 MB

	// MaxFiles is the number of "files" parts accepted per send.
	MaxFiles = 10

	// MultipartMemory is how much of a multipart body is buffered in memory
	// before spilling parts to temporary files.
	MultipartMemory = 32 << 20 // 32 MB

	// MaxJSONBody caps login and other small JSON requests.
	MaxJSONBody = 1 << 20 // 1 MB
)
