package main

import "github.com/jmehdipour/car-rating/cmd"

func main() {
	cmd.Execute()
}
