package main

import "quinn/cmd"

func main() {
	cmd.Execute()
}
