package cli_helpers

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"gitlab.com/gitlab-org/deploy-packager/common"
)

// LogRuntimePlatform logs the platform and build of the packager before any
// command runs. It's only visible with --debug.
func LogRuntimePlatform(app *cli.App) {
	appBefore := app.Before
	app.Before = func(c *cli.Context) error {
		logrus.WithFields(common.AppVersion.Fields()).
			WithField("pid", os.Getpid()).
			Debugln("Runtime platform")

		if appBefore != nil {
			return appBefore(c)
		}
		return nil
	}
}
