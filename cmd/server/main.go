package main

import "match-chat-backend/cmd"

func main() {
	cmd.Run()
}
