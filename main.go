package main

import (
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

func main() {
	Execute()
}
