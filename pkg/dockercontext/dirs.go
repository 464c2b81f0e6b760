package dockercontext

import (
	"os"
	"path/filepath"

	"github.com/cat21/botbox/pkg/global"
)

// BuildArtifactsDirPath returns dir/.botbox, creating it if needed.
func BuildArtifactsDirPath(dir string) (string, error) {
	artifactsDir := filepath.Join(dir, global.StateDirname)
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return "", err
	}
	return artifactsDir, nil
}

// TargetStateDir returns the host directory that holds a target's persisted volumes,
// e.g. dir/.botbox/state/twitter, creating it if needed.
func TargetStateDir(dir string, target string) (string, error) {
	artifactsDir, err := BuildArtifactsDirPath(dir)
	if err != nil {
		return "", err
	}
	stateDir := filepath.Join(artifactsDir, "state", target)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", err
	}
	return stateDir, nil
}

// VolumeHostPath maps a container path of a target's volume to its host directory,
// creating it if needed.
func VolumeHostPath(dir string, target string, containerPath string) (string, error) {
	stateDir, err := TargetStateDir(dir, target)
	if err != nil {
		return "", err
	}
	hostPath := filepath.Join(stateDir, filepath.FromSlash(containerPath))
	if err := os.MkdirAll(hostPath, 0o755); err != nil {
		return "", err
	}
	return hostPath, nil
}
