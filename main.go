package main

import "repoharness/cmd"

func main() {
	cmd.Execute()
}
