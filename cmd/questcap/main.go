package main

import "github.com/bryanchriswhite/questcap/cmd/questcap/commands"

func main() {
	commands.Execute()
}
