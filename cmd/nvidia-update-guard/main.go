// Package main is the entry point for the nvidia-update-guard binary.
package main

import "github.com/oshokin/nvidia-update-guard/cmd/nvidia-update-guard/cmd"

func main() {
	cmd.Execute()
}
