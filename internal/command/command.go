package command

import "strings"

// Command is a literal control keyword with a fixed reply.
type Command struct {
	Name  string
	Reply string
}

var commands = map[string]Command{
	"help": {Name: "help", Reply: "I can save your messages and images. Just send them to me!"},
	"ping": {Name: "ping", Reply: "pong"},
	"test": {Name: "test", Reply: "test"},
}

// Interpret matches the trimmed, lower-cased text exactly against the known
// keywords. It has no side effects.
func Interpret(text string) (Command, bool) {
	c, ok := commands[strings.ToLower(strings.TrimSpace(text))]
	return c, ok
}
