package main

import "github.com/brensch/failurelogs/cmd"

func main() {
	cmd.Execute()
}
