package main

import "github.com/oshokin/factorio-up/cmd/factorio-up/cmd"

func main() {
	cmd.Execute()
}
