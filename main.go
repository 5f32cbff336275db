package main

import "zepler/cmd"

func main() {
	cmd.Execute()
}
