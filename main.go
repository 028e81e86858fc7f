package main

import (
	"fmt"

	_ "github.com/notesync/feedkit/cache"
	_ "github.com/notesync/feedkit/loader"
	_ "github.com/notesync/feedkit/logger"
	_ "github.com/notesync/feedkit/preload"
)

func main() {
	fmt.Println("Hi")
}
