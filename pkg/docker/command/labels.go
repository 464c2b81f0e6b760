package command

import "github.com/cat21/botbox/pkg/global"

var (
	TargetLabelKey         = global.LabelNamespace + "target"
	EntrypointLabelKey     = global.LabelNamespace + "entrypoint"
	PackageManagerLabelKey = global.LabelNamespace + "package_manager"
	LockDigestLabelKey     = global.LabelNamespace + "lock_digest"
	ConfigDigestLabelKey   = global.LabelNamespace + "config_digest"
	EnvironmentLabelKey    = global.LabelNamespace + "environment"
	VolumesLabelKey        = global.LabelNamespace + "volumes"
	VersionLabelKey        = global.LabelNamespace + "version"
)
