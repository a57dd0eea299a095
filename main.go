package main

import "github.com/lachlan2k/vitrine/internal/cli"

func main() {
	cli.Execute()
}
