package main

import "github.com/deploymenttheory/go-its/cmd"

func main() {
	cmd.Execute()
}
