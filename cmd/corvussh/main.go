package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/peterh/liner"

	"github.com/corvusdb/corvus/cmd/corvussh/parser"
	"github.com/corvusdb/corvus/cmd/corvussh/shell"
	"github.com/corvusdb/corvus/internal/config"
	"github.com/corvusdb/corvus/pkg/corvus"
)

const prompt = "corvus> "

func main() {
	path := flag.String("path", "", "sqlite file path (empty opens an in-memory database)")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	cfg := config.Default()
	if *path != "" {
		cfg.Backend = config.BackendSQLite
		cfg.Path = *path
	}
	cfg.Logging.Verbose = *verbose

	fmt.Println("Corvus Shell v0")
	if *path != "" {
		fmt.Printf("Opening %s...\n", *path)
	} else {
		fmt.Println("Opening in-memory database...")
	}

	db, err := corvus.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Ready. Type '.help' for commands.")
	fmt.Println()

	sh := shell.New(db)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := historyFile()
	if f, err := os.Open(histPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				break
			}
			fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
			continue
		}

		if input == "" {
			continue
		}
		line.AppendHistory(input)

		cmd, err := parser.Parse(input)
		if err != nil {
			fmt.Fprintln(os.Stdout, "ERROR:", err)
			fmt.Println()
			continue
		}

		sh.AddHistory(input)
		result := sh.Execute(cmd)
		if result.IsExit() {
			break
		}
		result.Print(os.Stdout)
		fmt.Println()
	}

	if f, err := os.Create(histPath); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
	fmt.Println("Bye!")
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".corvus_history"
	}
	return filepath.Join(home, ".corvus_history")
}
