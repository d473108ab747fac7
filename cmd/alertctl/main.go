package main

import "github.com/oshokin/gentle-alert/cmd/alertctl/cmd"

func main() {
	cmd.Execute()
}
