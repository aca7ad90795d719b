// Package ui paints watcher output for the terminal with lipgloss.
//
// [Progress] renders one [tasks.ProgressUpdate] per line, colored by outcome; [Banner] prints what is being
// watched at startup. Colors degrade to plain text when the output is not a terminal.
package ui
