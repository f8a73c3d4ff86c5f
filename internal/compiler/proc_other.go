//go:build !unix

package compiler

import "os/exec"

func configureProcess(cmd *exec.Cmd) {}
