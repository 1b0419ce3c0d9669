package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and maps any error to exit status 1.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteC()
	if err != nil {
		input := ""
		if cmd != nil && cmd.Flags().NArg() > 0 {
			input = cmd.Flags().Arg(0)
		}
		fmt.Fprint(stderr, formatError(err, input))
		return 1
	}
	return 0
}
