package main

import "github.com/tdopierre/book-better-activities/cmd"

func main() {
	cmd.Execute()
}
