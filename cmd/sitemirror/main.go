// Command sitemirror keeps a normalized local copy of one or more websites
// and publishes changes to a git repository.
package main

func main() {
	Execute()
}
