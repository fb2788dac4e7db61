package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/peterh/liner"
	log "github.com/sirupsen/logrus"

	"github.com/seeing-things/point"
	"github.com/seeing-things/point/gemini"
	"github.com/seeing-things/point/nexstar"
)

const historyFile = ".pointctl_history"

// console sends raw commands typed by the user and prints the replies.
func console(m *mount) error {
	shell := liner.NewLiner()
	defer shell.Close()

	shell.SetCtrlCAborts(true)

	history := filepath.Join(os.TempDir(), historyFile)

	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFile)
	}

	if f, err := os.Open(history); err == nil {
		shell.ReadHistory(f)
		f.Close()
	}

	parse := nexstar.ParseLine
	help := "Enter a command letter and parameters, e.g. \"e\" or \"T 0x02\". Ctrl-D quits."

	if m.gemini != nil {
		parse = gemini.ParseLine
		help = "Enter ':GR#', '<411:', 'bW#' or ACK. Native checksums are added. Ctrl-D quits."
	}

	fmt.Println(help)

	for {
		line, err := shell.Prompt("> ")

		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Println()
			break
		}

		if err != nil {
			return err
		}

		if line == "" {
			continue
		}

		shell.AppendHistory(line)

		cmd, err := parse(line)

		if err != nil {
			fmt.Printf("Rejected: %v\n", err)
			continue
		}

		r, err := m.session.Send(cmd)

		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		printResponse(cmd, r)
	}

	f, err := os.Create(history)

	if err != nil {
		log.Warnf("Unable to save history: %v", err)
		return nil
	}

	defer f.Close()

	_, err = shell.WriteHistory(f)

	if err != nil {
		log.Warnf("Unable to save history: %v", err)
	}

	return nil
}

func printResponse(cmd point.Command, r point.Response) {
	if r.NoData {
		fmt.Printf("%s: ok\n", cmd.Name)
		return
	}

	fmt.Printf("%s: %q (% X)\n", cmd.Name, r.Payload, r.Payload)
}
