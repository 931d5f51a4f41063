package hgclient

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

const initTimeout = 5 * time.Second

// Init creates a new repository at destination by spawning a transient
// hg process (hgPath defaults to "hg"), rather than the persistent
// command server. Bounded by a 5-second timeout since this is expected
// to be near-instantaneous local work.
func Init(destination string, hgPath string) error {
	if hgPath == "" {
		hgPath = "hg"
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, hgPath, "init", destination)
	return runOneShot(cmd)
}

// Clone clones source into destination with the given extra flags,
// again via a transient process rather than the command server.
func Clone(source, destination string, flags ...string) error {
	argv := append([]string{"clone"}, flags...)
	argv = append(argv, source)
	if destination != "" {
		argv = append(argv, destination)
	}

	cmd := exec.Command("hg", argv...)
	return runOneShot(cmd)
}

func runOneShot(cmd *exec.Cmd) error {
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return newErrorf(ServerLaunchFailed, err, "failed to run %s", cmd.Path)
	}

	result := CommandResult{
		Stdout:   combined.String(),
		ExitCode: int32(exitErr.ExitCode()),
	}
	return commandFailedError("", cmd.Args, result)
}
