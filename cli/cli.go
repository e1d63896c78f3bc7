// Package cli implements the flotilla command line client.
package cli

import (
	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
)

var (
	errColor = color.New(color.FgRed, color.Bold)
	okColor  = color.New(color.FgGreen)
)

func logErrorCmd(cmd cobra.Command, err error) {
	errColor.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err)
}

func logOKCmd(cmd cobra.Command, msg string) {
	okColor.Fprintln(cmd.OutOrStdout(), msg)
}

func logJSONCmd(cmd cobra.Command, v any) {
	out, err := prettyjson.Marshal(v)
	if err != nil {
		logErrorCmd(cmd, err)
		return
	}
	cmd.Println(string(out))
}
