package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/droy-go/SEEKEP/internal/config"
	"github.com/droy-go/SEEKEP/internal/pipeline"
	"github.com/droy-go/SEEKEP/internal/stdlib"
	"github.com/droy-go/SEEKEP/internal/vm"
)

const (
	colorPrompt = "\x1b[36m"
	colorError  = "\x1b[31m"
	colorReset  = "\x1b[0m"
)

// cmdRepl reads statements line by line into one persistent VM, so
// globals defined in earlier inputs stay visible in later ones.
func cmdRepl() error {
	cfg, err := config.LoadUserConfig()
	if err != nil {
		return fmt.Errorf("config.yaml: %w", err)
	}

	tty := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	colored := tty && cfg.Color

	machine := vm.New()
	stdlib.Install(machine)

	if tty {
		fmt.Printf("seekep %s\n", config.Version)
	}

	var history []string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if tty {
			if colored {
				fmt.Print(colorPrompt + cfg.Prompt + colorReset)
			} else {
				fmt.Print(cfg.Prompt)
			}
		}
		if !scanner.Scan() {
			if tty {
				fmt.Println()
			}
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "خروج" || line == "exit" {
			return nil
		}

		history = append(history, line)
		if len(history) > cfg.HistorySize {
			history = history[len(history)-cfg.HistorySize:]
		}

		chunk, err := pipeline.CompileSource("<repl>", line)
		if err != nil {
			replError(colored, err)
			continue
		}
		if err := machine.Run(chunk); err != nil {
			replError(colored, err)
		}
	}
}

func replError(colored bool, err error) {
	if colored {
		fmt.Fprintln(os.Stderr, colorError+err.Error()+colorReset)
	} else {
		fmt.Fprintln(os.Stderr, err.Error())
	}
}
