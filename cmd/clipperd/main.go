package main

import "github.com/anl331/vid-clipper/internal/cli"

func main() {
	cli.Main()
}
