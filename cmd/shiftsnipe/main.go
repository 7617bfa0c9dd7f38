package main

import "github.com/example/shift-sniper/cmd"

func main() {
	cmd.Execute()
}
