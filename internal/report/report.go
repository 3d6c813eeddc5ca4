// Package report turns a command outcome into log output and a verdict.
package report

import (
	"regexp"
	"strings"

	"github.com/andrej220/sshop/internal/operr"
	"github.com/andrej220/sshop/internal/session"
	"github.com/andrej220/sshop/pkg/lg"
)

type Options struct {
	Stdout bool
	Stderr bool
}

var lineBreak = regexp.MustCompile(`\r?\n`)

// Outcome logs the enabled streams line by line and fails with
// operr.KindCommandFailed unless the exit status is 0.
func Outcome(logger lg.Logger, out *session.Outcome, opts Options) error {
	if opts.Stdout {
		logger.Info("STDOUT output")
		logLines(logger, "stdout", out.Stdout)
	}
	if opts.Stderr {
		logger.Info("STDERR output")
		logLines(logger, "stderr", out.Stderr)
	}

	logger.Info("command finished", lg.Int("status", out.ExitStatus))
	if out.ExitStatus != 0 {
		return operr.CommandFailed(out.ExitStatus)
	}
	return nil
}

// Lines splits output on \n or \r\n. A trailing line break does not yield
// an empty last line.
func Lines(output []byte) []string {
	s := strings.TrimRight(string(output), "\r\n")
	if s == "" {
		return nil
	}
	return lineBreak.Split(s, -1)
}

func logLines(logger lg.Logger, stream string, output []byte) {
	for _, line := range Lines(output) {
		logger.Info("  "+line, lg.String("stream", stream))
	}
}
