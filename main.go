package main

import "github.com/KaramelBytes/boxheat-cli/cmd"

func main() {
	cmd.Execute()
}
