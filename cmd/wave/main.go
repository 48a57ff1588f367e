// Command wave recognizes static hand gestures from a camera or a replay
// file and emits debounced gesture events.
package main

func main() {
	Execute()
}
