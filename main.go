package main

import "hallpass-backend/cmd"

func main() {
	cmd.Run()
}
