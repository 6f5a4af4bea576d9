package main

import "github.com/arsenal-framework/arsenal/cmd/arsenal"

func main() {
	arsenal.Execute()
}
