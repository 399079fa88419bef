// Package artifacts implements the launch-artifact URL builder named
// in §6: it names the three artifacts referenced per executor (the
// OS-qualified JRE archive, the version-qualified database
// distribution archive, and the executor bundle) and joins a base URL
// to a resource name the way the core requires.
package artifacts

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// BuildURL concatenates base and resource and collapses runs of
// slashes that are NOT immediately preceded by ':' (so "http://" is
// left alone but "a//b" collapses to "a/b").
func BuildURL(base, resource string) string {
	joined := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(resource, "/")
	var b strings.Builder
	for i := 0; i < len(joined); i++ {
		c := joined[i]
		if c == '/' && i > 0 && joined[i-1] == '/' && (i < 2 || joined[i-2] != ':') {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// detectedOS returns "macosx" or "linux", honoring an OS_NAME
// environment override per §6 before falling back to runtime.GOOS.
func detectedOS() string {
	if override := os.Getenv("OS_NAME"); override != "" {
		return override
	}
	if runtime.GOOS == "darwin" {
		return "macosx"
	}
	return "linux"
}

// JREArchiveName is the OS-qualified JRE archive name.
func JREArchiveName() string {
	return fmt.Sprintf("jre-%s.tar.gz", detectedOS())
}

// DatabaseArchiveName is the version-qualified Cassandra distribution
// archive name.
func DatabaseArchiveName(version string) string {
	return fmt.Sprintf("cassandra-%s-bin.tar.gz", version)
}

// ExecutorBundleName is the executor bundle's artifact name.
const ExecutorBundleName = "cassandra-mesos-executor"
