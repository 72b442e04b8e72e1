// Package main is the entry point for UsageLedger.
package main

func main() {
	Execute()
}
