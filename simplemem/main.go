// Package main runs the simplemem command-line tool.
package main

import "github.com/sarchlab/simplemem/simplemem/cmd"

func main() {
	cmd.Execute()
}
