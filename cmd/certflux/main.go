package main

import "github.com/jmcleod/certflux/cmd/certflux/cmd"

func main() {
	cmd.Execute()
}
