package command

import (
	"fmt"
	"io"
)

type commonOutputFormatter struct {
	out io.Writer
	err io.Writer

	errorOutput   error
	commandOutput CommandResult
}

func (c *commonOutputFormatter) SetError(err error) {
	c.errorOutput = err
}

func (c *commonOutputFormatter) SetCommandResult(result CommandResult) {
	c.commandOutput = result
}

func (c *commonOutputFormatter) write(errorOutput, commandOutput func() string) {
	if c.errorOutput != nil {
		_, _ = fmt.Fprintln(c.err, errorOutput())

		return
	}

	_, _ = fmt.Fprintln(c.out, commandOutput())
}
