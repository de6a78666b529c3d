package main

import "github.com/Quidge/diffharness/cmd"

func main() {
	cmd.Execute()
}
