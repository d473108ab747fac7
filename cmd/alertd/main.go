package main

import "github.com/oshokin/gentle-alert/cmd/alertd/cmd"

func main() {
	cmd.Execute()
}
