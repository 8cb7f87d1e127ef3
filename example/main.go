// A minimal embedding example: drive a console entirely in memory, then
// print the terminal transcript. No transport, no goroutines.
package main

import (
	"fmt"

	conshell "github.com/TrailHuang/conshell"
)

func main() {
	reg := conshell.NewRegistry()
	reg.Add(0, 0, []string{"greet"}, []string{"<name>"}, func(c conshell.Console, args []string) error {
		c.Printf("hello, %s\n", args[0])
		return nil
	}, nil)
	reg.Add(0, 0, []string{"exit"}, nil, func(c conshell.Console, args []string) error {
		c.Stop()
		return nil
	}, nil)

	sched := conshell.NewScheduler()
	st := conshell.NewBufferStream()

	cfg := conshell.DefaultConfig()
	cfg.Prompt = "demo> "
	sh := conshell.NewShell(sched, reg, st, cfg)
	sh.Start()

	st.FeedString("greet world\rexit\r")
	for sched.Len() > 0 {
		sched.ServiceAll()
	}
	fmt.Print(st.TakeOutput())
}
