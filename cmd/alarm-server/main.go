package main

import "github.com/oshokin/remote-alarm/cmd/alarm-server/cmd"

func main() {
	cmd.Execute()
}
