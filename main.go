package main

import "github.com/WilliamHails/7th-sem-project/cmd"

func main() {
	cmd.Execute()
}
