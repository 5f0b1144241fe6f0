package main

import "github.com/nextlevelbuilder/robun/cmd"

func main() {
	cmd.Execute()
}
