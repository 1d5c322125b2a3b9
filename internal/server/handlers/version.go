package handlers

import (
	"net/http"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/visiprobe/visiprobe/internal/appid"
	"github.com/visiprobe/visiprobe/internal/core"
)

// VersionResponse is the /version body.
type VersionResponse struct {
	App          AppInfo        `json:"app"`
	Dependencies DepInfo        `json:"dependencies"`
	Runtime      RuntimeInfo    `json:"runtime"`
	Platforms    []PlatformInfo `json:"platforms,omitempty"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// PlatformInfo names one AI platform a scan queries. Models are not exposed.
type PlatformInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

var build = struct {
	sync.RWMutex
	app       AppInfo
	identity  appid.Identity
	platforms []PlatformInfo
}{
	app:      AppInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"},
	identity: appid.Get(),
}

// SetVersionInfo records the ldflags build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	build.Lock()
	defer build.Unlock()
	build.app.Version, build.app.Commit, build.app.BuildDate = version, commit, buildDate
}

// SetAppIdentity overrides the identity reported by the handler.
func SetAppIdentity(identity appid.Identity) {
	build.Lock()
	defer build.Unlock()
	build.identity = identity
}

// SetPlatforms publishes the configured scan platforms.
func SetPlatforms(specs []core.PlatformSpec) {
	platforms := make([]PlatformInfo, 0, len(specs))
	for _, spec := range specs {
		platforms = append(platforms, PlatformInfo{ID: spec.ID, Name: spec.DisplayName, Kind: string(spec.Kind)})
	}
	build.Lock()
	defer build.Unlock()
	build.platforms = platforms
}

// VersionHandler reports build, dependency and runtime details.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	build.RLock()
	app := build.app
	name := build.identity.BinaryName
	platforms := build.platforms
	build.RUnlock()

	if name == "" {
		name = appid.Get().BinaryName
	}
	app.Name = name
	app.GoVersion = runtime.Version()
	libs := crucible.GetVersion()

	writeJSON(w, VersionResponse{
		App:          app,
		Dependencies: DepInfo{Gofulmen: libs.Gofulmen, Crucible: libs.Crucible},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
		Platforms: platforms,
	})
}
