package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// Set with -ldflags -X at release time.
var (
	NAME     = "deploy-packager"
	VERSION  = "development version"
	REVISION = "HEAD"
	BRANCH   = "HEAD"
	BUILT    = "unknown"
)

const shortRevisionLength = 8

var AppVersion AppVersionInfo

type AppVersionInfo struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Revision     string `json:"revision"`
	Branch       string `json:"branch"`
	GOVersion    string `json:"go_version"`
	BuiltAt      string `json:"built_at"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	// Modified is set when the binary was built from a dirty checkout.
	Modified bool `json:"modified"`
}

// newAppVersion fills whatever the linker flags left at their defaults from
// the module and VCS information embedded by `go build`.
func newAppVersion(info *debug.BuildInfo) AppVersionInfo {
	v := AppVersionInfo{
		Name:         NAME,
		Version:      VERSION,
		Revision:     REVISION,
		Branch:       BRANCH,
		GOVersion:    runtime.Version(),
		BuiltAt:      BUILT,
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	if info == nil {
		return v
	}

	if v.Version == "development version" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v.Version = strings.TrimPrefix(info.Main.Version, "v")
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if v.Revision == "HEAD" {
				v.Revision = s.Value[:min(len(s.Value), shortRevisionLength)]
			}
		case "vcs.time":
			if v.BuiltAt == "unknown" {
				v.BuiltAt = s.Value
			}
		case "vcs.modified":
			v.Modified = s.Value == "true"
		}
	}

	return v
}

func (v *AppVersionInfo) Printer(c *cli.Context) {
	fmt.Print(v.Extended())
}

func (v *AppVersionInfo) revision() string {
	if v.Modified {
		return v.Revision + "-dirty"
	}
	return v.Revision
}

func (v *AppVersionInfo) Line() string {
	return fmt.Sprintf("%s %s (%s)", v.Name, v.Version, v.revision())
}

func (v *AppVersionInfo) ShortLine() string {
	return fmt.Sprintf("%s (%s)", v.Version, v.revision())
}

func (v *AppVersionInfo) Extended() string {
	var b strings.Builder

	for _, row := range [][2]string{
		{"Version", v.Version},
		{"Git revision", v.revision()},
		{"Git branch", v.Branch},
		{"GO version", v.GOVersion},
		{"Built", v.BuiltAt},
		{"OS/Arch", v.OS + "/" + v.Architecture},
	} {
		fmt.Fprintf(&b, "%-13s %s\n", row[0]+":", row[1])
	}

	return b.String()
}

// Fields describes the build in log entries.
func (v *AppVersionInfo) Fields() logrus.Fields {
	return logrus.Fields{
		"version":  v.Version,
		"revision": v.revision(),
		"os":       v.OS,
		"arch":     v.Architecture,
	}
}

var versionLabels = []string{"name", "version", "revision", "branch", "go_version", "built_at", "os", "architecture"}

// NewMetricsCollector returns a gauge with the build information as labels,
// written next to the packaging metrics.
func (v *AppVersionInfo) NewMetricsCollector() *prometheus.GaugeVec {
	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deploy_packager_version_info",
			Help: "A metric with a constant '1' value labeled by different build stats fields.",
		},
		versionLabels,
	)
	buildInfo.WithLabelValues(
		v.Name, v.Version, v.revision(), v.Branch, v.GOVersion, v.BuiltAt, v.OS, v.Architecture,
	).Set(1)

	return buildInfo
}

func init() {
	info, _ := debug.ReadBuildInfo()
	AppVersion = newAppVersion(info)
}
