package main

import "github.com/dkeye/Call/internal/cli"

func main() {
	cli.Execute()
}
