/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/chatlog/cmd/chatlog/cmd"

func main() {
	cmd.Execute()
}
