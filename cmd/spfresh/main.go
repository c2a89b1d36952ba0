package main

import "github.com/hupe1980/spfresh/internal/cli"

func main() {
	cli.Execute()
}
