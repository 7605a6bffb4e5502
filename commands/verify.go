package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"gitlab.com/gitlab-org/deploy-packager/archive/zipfile"
	"gitlab.com/gitlab-org/deploy-packager/common"
	"gitlab.com/gitlab-org/deploy-packager/helpers/meter"
)

type VerifyCommand struct {
	File string `long:"file" env:"PACKAGER_OUTPUT" description:"The deployment artifact to verify"`
	List bool   `long:"list" description:"Print a table of the verified entries"`

	out io.Writer
}

func (c *VerifyCommand) verify(ctx context.Context) (*zipfile.Summary, error) {
	summary, err := zipfile.Verify(ctx, c.File)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"file":        c.File,
		"entries":     summary.Entries,
		"directories": summary.Directories,
		"size":        meter.FormatBytes(uint64(summary.UncompressedSize)),
		"compressed":  meter.FormatBytes(uint64(summary.CompressedSize)),
	}).Infoln("Archive verified")

	if c.List {
		out := c.out
		if out == nil {
			out = os.Stdout
		}
		renderEntries(out, summary)
	}

	return summary, nil
}

func renderEntries(w io.Writer, summary *zipfile.Summary) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Entry", "Method", "CRC-32", "Size", "Compressed"})

	t.AppendRows(lo.Map(summary.Files, func(f zipfile.FileInfo, _ int) table.Row {
		return table.Row{
			f.Path,
			f.Method.String(),
			fmt.Sprintf("%08x", f.CRC32),
			meter.FormatBytes(uint64(f.UncompressedSize)),
			meter.FormatBytes(uint64(f.CompressedSize)),
		}
	}))

	t.AppendFooter(table.Row{
		fmt.Sprintf("%d entries", summary.Entries),
		"",
		"",
		meter.FormatBytes(uint64(summary.UncompressedSize)),
		meter.FormatBytes(uint64(summary.CompressedSize)),
	})

	_, _ = fmt.Fprintln(w, t.Render())
}

func (c *VerifyCommand) Execute(*cli.Context) {
	if c.File == "" {
		logrus.Fatalln("Missing --file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := c.verify(ctx); err != nil {
		logrus.WithError(err).Fatalln("Verification failed")
	}
}

func init() {
	common.RegisterCommand("verify", "check every entry of a deployment artifact", &VerifyCommand{})
}
