package main

import "github.com/mabhi256/gcscan/cmd"

func main() {
	cmd.Execute()
}
