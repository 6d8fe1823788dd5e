package main

import "github.com/theirongolddev/cclog/cmd"

func main() {
	cmd.Execute()
}
