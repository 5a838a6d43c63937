package main

import "github.com/MeKo-Tech/matrixscan/cmd/matrixscan/cmd"

func main() {
	cmd.Execute()
}
