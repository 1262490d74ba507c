package main

import "github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/cmd"

func main() {
	cmd.Execute()
}
