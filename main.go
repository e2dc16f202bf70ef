package main

import "cleanscore-server/cli"

func main() {
	cli.Execute()
}
