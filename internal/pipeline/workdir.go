package pipeline

import (
	"log"
	"os"
	"regexp"
)

// unsafeChars matches everything that may not appear in a task folder name.
// Unicode letters and digits pass through (\w is unicode-aware here), so
// non-ASCII titles keep their script instead of collapsing to underscores.
var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\-.]`)

// SanitizeName maps an arbitrary title to a name safe for local directories
// and storage folder keys.
func SanitizeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Cleanup removes the given files and directories, logging and continuing on
// individual failures. Empty paths are skipped.
func Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("cleanup: stat %s: %v", path, err)
			}
			continue
		}
		if info.IsDir() {
			if err := os.RemoveAll(path); err != nil {
				log.Printf("cleanup: remove dir %s: %v", path, err)
				continue
			}
			log.Printf("Removed directory: %s", path)
		} else {
			if err := os.Remove(path); err != nil {
				log.Printf("cleanup: remove file %s: %v", path, err)
				continue
			}
			log.Printf("Removed file: %s", path)
		}
	}
}
