package main

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

// isTTY returns true if the given file descriptor is a terminal.
func isTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

var bannerLines = []string{
	`                                        `,
	`   ___  __ _| | __ _  __ _| |_ ___      `,
	`  / __|/ _' | |/ _' |/ _' | __/ _ \     `,
	`  \__ \ (_| | | (_| | (_| | ||  __/     `,
	`  |___/\__, |_|\__, |\__,_|\__\___|     `,
	`          |_|  |___/                    `,
	`                                        `,
}

// Green to yellow, one code per line.
var bannerColors = []string{
	"\033[1;32m",
	"\033[1;32m",
	"\033[1;92m",
	"\033[1;33m",
	"\033[1;93m",
	"\033[1;93m",
	"\033[0m",
}

// printBanner prints the sqlgate ASCII art, colored when useColor is set.
func printBanner(w io.Writer, useColor bool) {
	for i, line := range bannerLines {
		if useColor {
			fmt.Fprintf(w, "%s%s\033[0m\n", bannerColors[i%len(bannerColors)], line)
			continue
		}
		fmt.Fprintln(w, line)
	}
}
