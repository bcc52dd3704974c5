package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Iron-Ham/wsrun/internal/errors"
	"github.com/Iron-Ham/wsrun/internal/runner"
	"github.com/Iron-Ham/wsrun/internal/tui/styles"
)

func printNoPackages(w io.Writer, script string) {
	fmt.Fprintln(w, styles.WarningMsg.Render(fmt.Sprintf("No packages found with the lifecycle script '%s'", script)))
}

func printCycleWarning(w io.Writer, cycle []string) {
	msg := fmt.Sprintf("ECYCLE: dependency cycle detected: %s. These packages and their dependents run as one unordered batch; use --reject-cycles to fail instead.",
		strings.Join(cycle, " -> "))
	fmt.Fprintln(w, styles.WarningMsg.Render(msg))
}

func printSuccess(w io.Writer, report *runner.Report) {
	names := report.Succeeded()
	fmt.Fprintln(w, styles.SuccessMsg.Render(fmt.Sprintf("Ran script '%s' in %d packages:", report.Script, len(names))))
	for _, name := range names {
		fmt.Fprintf(w, "- %s\n", name)
	}
}

// printPackageOutput prints the captured output of one package under a
// header naming it.
func printPackageOutput(w io.Writer, pkg string, stdout, stderr []byte) {
	fmt.Fprintln(w, styles.Title.Render(pkg))
	if body := outputBody(stdout, stderr); body != "" {
		fmt.Fprintln(w, styles.OutputBlock.Render(body))
	}
}

func outputBody(stdout, stderr []byte) string {
	var parts []string
	for _, b := range [][]byte{stdout, stderr} {
		if s := strings.TrimRight(string(b), "\n"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// printError reports a failed command. Package failures are listed one by
// one with whatever output they captured.
func printError(w io.Writer, err error) {
	var runErr *errors.RunError
	var taskErr *errors.TaskError
	switch {
	case errors.As(err, &runErr):
		fmt.Fprintln(w, styles.ErrorMsg.Render(fmt.Sprintf("%d of %d packages failed", len(runErr.Failures), runErr.Total)))
		for _, f := range runErr.Failures {
			printTaskError(w, f)
		}
	case errors.As(err, &taskErr):
		printTaskError(w, taskErr)
	case errors.IsUserFacing(err):
		fmt.Fprintln(w, styles.ErrorMsg.Render(err.Error()))
	default:
		fmt.Fprintln(w, styles.ErrorMsg.Render("Error: "+err.Error()))
	}
}

func printTaskError(w io.Writer, err *errors.TaskError) {
	fmt.Fprintln(w, styles.ErrorMsg.Render(err.Error()))
	if err.HasOutput() {
		fmt.Fprintln(w, styles.OutputBlock.Render(outputBody(err.Stdout, err.Stderr)))
	}
}
