package main

import "github.com/storewatch/storewatchd/cmd"

func main() {
	cmd.Execute()
}
