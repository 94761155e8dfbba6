package main

import (
	"os"

	"github.com/mattn/go-isatty"

	"partita/internal/store"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
)

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderStatus colors a revision status for terminal output and leaves it
// plain when stdout is redirected.
func renderStatus(status store.Status, colorize bool) string {
	if !colorize {
		return string(status)
	}
	switch status {
	case store.StatusApproved:
		return ansiGreen + string(status) + ansiReset
	case store.StatusPendingApproval:
		return ansiYellow + string(status) + ansiReset
	case store.StatusRejected:
		return ansiRed + string(status) + ansiReset
	case store.StatusWithdrawn:
		return ansiDim + string(status) + ansiReset
	default:
		return string(status)
	}
}

func renderAvailability(available, optional bool, colorize bool) string {
	label := "OK"
	color := ansiGreen
	if !available {
		if optional {
			label = "MISSING (optional)"
			color = ansiYellow
		} else {
			label = "MISSING"
			color = ansiRed
		}
	}
	if !colorize {
		return label
	}
	return color + label + ansiReset
}
