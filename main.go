package main

import "github.com/lunardrift/lunardrift/cmd"

func main() {
	cmd.Execute()
}
