//go:build !unix && !windows

package retry

// IsTransient never retries on platforms without errno classification
func IsTransient(error) bool { return false }
