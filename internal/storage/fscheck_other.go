//go:build !darwin && !linux

package storage

func detectFilesystemType(string) (string, error) {
	// No detection available; assume local.
	return "unknown", nil
}
