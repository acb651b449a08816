package main

import "github.com/jvs-project/managedfiles/internal/cli"

func main() {
	cli.Execute()
}
