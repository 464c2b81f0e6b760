package global

import (
	"time"
)

var (
	Version        = "0.0.1"
	Commit         = ""
	BuildTime      = "none"
	Verbose        = false
	ConfigFilename = "botbox.yaml"
	LabelNamespace = "run.botbox."
	StateDirname   = ".botbox"
	DockerTimeout  = 30 * time.Minute
)
