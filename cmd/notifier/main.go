package main

import "github.com/lingoloop/notifier/internal/cmd"

func main() {
	cmd.Execute()
}
