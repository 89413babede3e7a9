// The main package for the trending-digest executable.
package main

import "github.com/JakeFAU/trending-digest/cmd"

func main() {
	cmd.Execute()
}
