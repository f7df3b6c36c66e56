package main

import "github.com/KaramelBytes/dqcheck-cli/cmd"

func main() {
	cmd.Execute()
}
