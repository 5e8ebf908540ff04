package main

import (
	"time"

	"github.com/stockroomhq/stockroom/cmd"
)

func init() {
	time.Local = time.UTC
}

func main() {
	cmd.Execute()
}
