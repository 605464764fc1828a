package cmd

import (
	"context"
	"strings"

	"github.com/lingoloop/notifier/internal/output"
	"github.com/lingoloop/notifier/internal/resolver"
)

// terminalNavigator prints where a click leads instead of switching screens
type terminalNavigator struct {
	baseURL string
	printer *output.Printer
}

func newTerminalNavigator(baseURL string, printer *output.Printer) *terminalNavigator {
	return &terminalNavigator{baseURL: strings.TrimRight(baseURL, "/"), printer: printer}
}

func (n *terminalNavigator) URL(route resolver.Route) string {
	return n.baseURL + route.Path()
}

func (n *terminalNavigator) Navigate(_ context.Context, route resolver.Route) error {
	n.printer.Success("→ %s", n.URL(route))
	return nil
}

func (n *terminalNavigator) Notify(message string) {
	n.printer.Warning("%s", message)
}
