// shell is a POSIX/bash-compatible shell core. Per spec.md §1's Non-goals,
// CLI flag parsing and the interactive line editor are external
// collaborators; this driver stays exactly as small as the teacher's
// cmd/wsh/main.go.
//
// Usage:
//
//	shell [-c command] [file]
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	var command string
	args := os.Args[1:]
	var fileArgs []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c":
			if i+1 >= len(args) {
				errColor.Fprintln(os.Stderr, "shell: -c: option requires an argument")
				os.Exit(2)
			}
			command = args[i+1]
			i++
		default:
			fileArgs = append(fileArgs, args[i])
		}
	}

	shell := NewShell()

	if command != "" {
		status, err := shell.ExecuteString(command)
		if err != nil {
			color.New(color.FgRed).Fprintf(os.Stderr, "shell: %s\n", err)
			os.Exit(1)
		}
		os.Exit(status)
	}

	if len(fileArgs) > 0 {
		f, err := os.Open(fileArgs[0])
		if err != nil {
			errColor.Fprintf(os.Stderr, "shell: %s: %s\n", fileArgs[0], err)
			os.Exit(1)
		}
		defer f.Close()
		shell.Stdin = f
		shell.Interactive = false
	}

	if err := shell.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "shell: %s\n", err)
		os.Exit(1)
	}
}
