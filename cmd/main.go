package main

import "dochat/internal/cli"

func main() {
	cli.Execute()
}
