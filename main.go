package main

import "github.com/sara-platform/portal/cmd"

func main() {
	cmd.Execute()
}
