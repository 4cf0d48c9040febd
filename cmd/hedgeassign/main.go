package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/aggregate"
	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/check"
	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/generate"
	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/run"
	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/solve"
)

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func dispatch(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "generate", "gen":
		return generate.Run(args[1:], stdin, stdout, stderr)
	case "aggregate", "agg":
		return aggregate.Run(args[1:], stdin, stdout, stderr)
	case "solve":
		return solve.Run(args[1:], stdin, stdout, stderr)
	case "validate":
		return check.Run(args[1:], stdin, stdout, stderr)
	case "run":
		return run.Run(args[1:], stdin, stdout, stderr)
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: hedgeassign <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  generate   Generate a synthetic credit portfolio")
	fmt.Fprintln(w, "  aggregate  Build swap targets from a portfolio")
	fmt.Fprintln(w, "  solve      Assign credits to swaps with cbc")
	fmt.Fprintln(w, "  validate   Check an assignment against the swap targets")
	fmt.Fprintln(w, "  run        All of the above for one experiment")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run `hedgeassign <command> -h` for command-specific help.")
}
