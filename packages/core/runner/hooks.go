package runner

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/calvale/webwalk/packages/core/env"
)

// runHooks executes setup or teardown commands with sh -c, the walk's
// directory as the working directory, and the inherited environment. A
// "-" prefix makes that command's failure non-fatal.
func (r *Runner) runHooks(commands []string, baseDir string, resolver *env.Resolver) error {
	for _, command := range commands {
		cmdStr := strings.TrimSpace(resolver.Resolve(command))
		if cmdStr == "" {
			continue
		}

		ignoreError := strings.HasPrefix(cmdStr, "-")
		if ignoreError {
			cmdStr = strings.TrimSpace(strings.TrimPrefix(cmdStr, "-"))
		}

		cmd := exec.Command("sh", "-c", cmdStr)
		cmd.Dir = baseDir
		cmd.Env = os.Environ()

		output, err := cmd.CombinedOutput()
		if len(output) > 0 {
			r.logger.Debug("hook output", "command", cmdStr, "output", string(output))
		}
		if err != nil {
			if ignoreError {
				r.logger.Warn("hook failed (ignored)", "command", cmdStr, "error", err)
				continue
			}
			return fmt.Errorf("command %q: %v\noutput: %s", cmdStr, err, output)
		}
	}
	return nil
}
