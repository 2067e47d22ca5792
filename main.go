package main

import "github.com/thejosephstevens/model-experiments/cmd"

func main() {
	cmd.Execute()
}
