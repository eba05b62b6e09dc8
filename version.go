package caddymiabrelay

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const modulePath = "github.com/liujed/caddy-miabrelay"

// Returns the module version and go-mod hash as recorded in the binary's build
// info. For example, "v0.0.0 (h1:abcd1234=)".
func Version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	// Built from this module directly, e.g. with "go install".
	if buildInfo.Main.Path == modulePath && buildInfo.Main.Version != "" {
		return buildInfo.Main.Version
	}

	for _, dep := range buildInfo.Deps {
		if dep.Path == modulePath {
			for dep.Replace != nil {
				dep = dep.Replace
			}
			buf := strings.Builder{}
			buf.WriteString(dep.Version)
			if dep.Sum != "" {
				buf.WriteString(" (")
				buf.WriteString(dep.Sum)
				buf.WriteString(")")
			}
			return buf.String()
		}
	}

	return "unknown"
}

// Returns the release string, including the application name, version, go-mod
// hash, OS, and architecture. For example, "miabrelay v0.0.0 (h1:abcd1234=)
// linux/amd64".
func Release() string {
	return fmt.Sprintf(
		"miabrelay %s %s/%s",
		Version(),
		runtime.GOOS,
		runtime.GOARCH,
	)
}
