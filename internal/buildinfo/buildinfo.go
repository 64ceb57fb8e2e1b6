package buildinfo

// Version is set by the linker.
//
//nolint:gochecknoglobals // set by the linker
var Version string

// BuildTime is set by the linker.
//
//nolint:gochecknoglobals // set by the linker
var BuildTime string

// AppName is set by the linker.
//
//nolint:gochecknoglobals // set by the linker
var AppName string

const defaultAppName = "xqueue-client"

// UserAgent is sent on every outbound queue request.
func UserAgent() string {
	name := AppName
	if name == "" {
		name = defaultAppName
	}
	version := Version
	if version == "" {
		version = "dev"
	}

	return name + "/" + version
}
