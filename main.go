package main

import "github.com/kozaktomas/face-enroll/cmd"

func main() {
	cmd.Execute()
}
