package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var errEmptyCommand = errors.New("empty command line")

// execLauncher starts the entry's command line as a detached process.
// Desktop-entry field codes (%f, %U, ...) are dropped since no files or
// URLs are passed from the command line.
type execLauncher struct{}

func (execLauncher) Launch(ctx context.Context, execLine string) error {
	args := commandArgs(execLine)
	if len(args) == 0 {
		return errEmptyCommand
	}
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", args[0], err)
	}
	// Reap in the background; the launched app outlives this process.
	go func() { _ = cmd.Wait() }()
	return nil
}

// commandArgs splits an exec line into arguments, honoring double quotes
// and removing field codes. "%%" is a literal percent sign.
func commandArgs(line string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	flush := func() {
		if started {
			args = append(args, cur.String())
		}
		cur.Reset()
		started = false
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && inQuote && i+1 < len(runes):
			i++
			cur.WriteRune(runes[i])
			started = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			flush()
		case r == '%' && i+1 < len(runes):
			i++
			if runes[i] == '%' {
				cur.WriteRune('%')
				started = true
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	flush()
	return args
}
