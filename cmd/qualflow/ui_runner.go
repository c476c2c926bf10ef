package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"qualflow/internal/driver"
	"qualflow/internal/source"
	"qualflow/internal/ui"
)

// phaseNames are the driver phases shown before the run reports them.
var phaseNames = []string{"classpath", "load", "annotate", "validate", "analyze", "check classes"}

type checkOutcome struct {
	result *driver.Result
	err    error
}

func runCheckWithUI(ctx context.Context, title string, fs *source.FileSet, input string, opts driver.Options) (*driver.Result, error) {
	events := make(chan ui.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		ui.Sink{Ch: events}.Install(&opts)
		res, err := driver.Check(ctx, fs, input, opts)
		outcomeCh <- checkOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, phaseNames, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	// the view may quit early; drain so the run can finish
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
