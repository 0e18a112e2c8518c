package main

import "github.com/miyuou/smartticket/cmd"

func main() {
	cmd.Execute()
}
