package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"
)

// cliRunner executes git subcommands in a fixed working directory. go-git
// covers every read path, but tree mutation (hard reset, three-way am) and
// mailbox rendering stay on the git binary: go-git has no am implementation
// and its format-patch output is not byte-compatible with git's.
type cliRunner struct {
	dir string
}

// Run executes git with the given arguments and returns combined output.
func (r *cliRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}

// RunLogged executes git, appending the rendered command line and its output
// to the log file at logPath. The log file is created when absent.
func (r *cliRunner) RunLogged(ctx context.Context, logPath string, args ...string) (string, error) {
	out, err := r.Run(ctx, args...)

	if logPath != "" {
		entry := fmt.Sprintf("$ git %s\n%s\n", shellquote.Join(args...), out)
		if f, ferr := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); ferr == nil {
			_, _ = f.WriteString(entry)
			_ = f.Close()
		}
	}

	return out, err
}
