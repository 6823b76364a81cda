package main

import (
	"github.com/JakeFAU/permafrost"
)

// main runs the command tree without an embedded application.
// Freezing needs one; serving and deploying an existing tree do not.
func main() {
	permafrost.Run(nil)
}
