package cli_helpers

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// WarnOnBool logs a warning if args contains a bare true or false.
// github.com/urfave/cli stops parsing when a boolean is passed as
// --flag true instead of --flag=true or just --flag.
func WarnOnBool(args []string) {
	// skip the program name
	for idx, a := range args[1:] {
		arg := strings.ToLower(a)
		if arg == "true" || arg == "false" {
			supposedFlag := "--key"
			if idx > 0 {
				supposedFlag = args[idx]
			}

			logrus.Warningf("boolean parameters must be passed in the command line with %s=%s", supposedFlag, arg)
			logrus.Warningln("parameters after this may be ignored")
			break
		}
	}
}
