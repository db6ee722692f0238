//go:build !unix

package cache

// lockFile is a no-op where flock is unavailable; the process mutex still
// serialises writers inside one process.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
