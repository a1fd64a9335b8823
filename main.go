package main

import "cryptoaudit/cmd"

func main() {
	cmd.Execute()
}
