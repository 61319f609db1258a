package main

import "github.com/Hundemeier/go-sacn/cmd"

func main() {
	cmd.Execute()
}
