package main

import "raftlab/cmd/node/command"

func main() {
	command.Execute()
}
