package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/wsrun/internal/event"
)

// Progress runs the progress view for the duration of one run.
type Progress struct {
	program *tea.Program
	bus     *event.Bus
	subID   string
	done    chan struct{}
	final   Model
	err     error
}

// StartProgress subscribes a progress view to bus and starts rendering it to
// out. It stops by itself when the run finishes; call Wait to block until the
// last frame is drawn.
func StartProgress(bus *event.Bus, script string, out io.Writer, opts ...tea.ProgramOption) *Progress {
	opts = append([]tea.ProgramOption{
		tea.WithOutput(out),
		tea.WithInput(nil),
		// Interrupts belong to the run's context, not the view.
		tea.WithoutSignalHandler(),
	}, opts...)

	p := &Progress{
		program: tea.NewProgram(NewModel(script), opts...),
		bus:     bus,
		done:    make(chan struct{}),
	}
	p.subID = bus.SubscribeAll(func(e event.Event) {
		p.program.Send(EventMsg{Event: e})
	})

	go func() {
		defer close(p.done)
		final, err := p.program.Run()
		if m, ok := final.(Model); ok {
			p.final = m
		}
		p.err = err
	}()
	return p
}

// Stop ends the view early, for runs that fail before they start.
func (p *Progress) Stop() {
	p.program.Quit()
}

// Wait blocks until the view has exited and detaches it from the bus.
func (p *Progress) Wait() (Model, error) {
	<-p.done
	p.bus.Unsubscribe(p.subID)
	return p.final, p.err
}
