package main

// mock afl-fuzz: records how it was invoked, then idles until it is
// told to stop. Lets the launcher be exercised on hosts without AFL.

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

type invocation struct {
	PID       int       `json:"pid"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	OutputDir string    `json:"output_dir"`
	Args      []string  `json:"args"`
	StartedAt time.Time `json:"started_at"`
}

func parseInvocation(args []string) invocation {
	inv := invocation{
		PID:       os.Getpid(),
		Args:      args,
		StartedAt: time.Now(),
	}
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "-M":
			inv.Role = "master"
			inv.Name = args[i+1]
		case "-S":
			inv.Role = "slave"
			inv.Name = args[i+1]
		case "-o":
			inv.OutputDir = args[i+1]
		case "--":
			return inv
		}
	}
	return inv
}

func main() {
	inv := parseInvocation(os.Args[1:])

	recordPath := os.Getenv("MOCKAFL_RECORD")
	if recordPath == "" && inv.OutputDir != "" {
		recordPath = filepath.Join(inv.OutputDir, "invocations.jsonl")
	}
	if recordPath != "" {
		if err := appendRecord(recordPath, inv); err != nil {
			fmt.Fprintf(os.Stderr, "mockafl: %v\n", err)
			os.Exit(1)
		}
	}

	lifetime := 60 * time.Second
	if v := os.Getenv("MOCKAFL_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			lifetime = d
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-time.After(lifetime):
	}
}

func appendRecord(path string, inv invocation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = f.Write(line)
	return err
}
