package main

import "ipowatch/cmd/report/cmd"

func main() {
	cmd.Execute()
}
