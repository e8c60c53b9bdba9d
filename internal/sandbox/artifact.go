package sandbox

import (
	"fmt"
	"os"

	"github.com/foldnet/gameserver/internal/domain"
)

// writeArtifact materializes a compiled module's bytes to a temp file
// so the sandbox agent binary (invoked as a subprocess) can mmap/load it
// without the host process needing to share memory across the process
// boundary. The sandbox has no filesystem access of its own; this file
// lives only in the host's temp directory and is never exposed to the
// module beyond being named on argv.
func writeArtifact(cm *domain.CompiledModule) (string, error) {
	f, err := os.CreateTemp("", fmt.Sprintf("module-%s-*.artifact", sanitizeID(cm.ModuleID)))
	if err != nil {
		return "", fmt.Errorf("create artifact temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(cm.Artifact); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return f.Name(), nil
}

func removeArtifact(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}

func sanitizeID(id domain.ModuleId) string {
	s := []byte(string(id))
	for i, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '.' || c == '-') {
			s[i] = '_'
		}
	}
	return string(s)
}
