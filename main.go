package main

import "github.com/dlarsson-se/walback/cmd"

func main() {
	cmd.Execute()
}
