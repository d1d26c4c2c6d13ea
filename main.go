package main

import "github.com/KaramelBytes/padi-analytics/cmd"

func main() {
	cmd.Execute()
}
