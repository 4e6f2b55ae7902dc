/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/snapify/snapify/cmd/snapifyd/cmd"

func main() {
	cmd.Execute()
}
