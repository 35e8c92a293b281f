package main

import (
	"os"

	"github.com/verdantci/evergreen/internal/evergreen"
)

func main() {
	os.Exit(evergreen.Main())
}
