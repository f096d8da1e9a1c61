package main

import "github.com/wthorbecke/gather/frontend/cli/cmd"

func main() {
	cmd.Execute()
}
