// Package hello implements the misc.hello_world smoke-test module.
package hello

import (
	"fmt"
	"strings"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/options"
)

type Module struct {
	opts *options.Set
}

func New() modules.Module {
	return &Module{opts: options.MustNewSet(
		options.Spec{Name: "MESSAGE", Type: options.TypeString, Default: "hello world", Description: "Message to print"},
		options.Spec{Name: "TIMES", Type: options.TypeInt, Default: "1", Description: "How many times to repeat it"},
	)}
}

func (m *Module) Name() string          { return "hello" }
func (m *Module) Description() string   { return "Minimal test module that prints a message" }
func (m *Module) Options() *options.Set { return m.opts }

func (m *Module) Execute(_ app.Context) (modules.Outcome, error) {
	msg := m.opts.String("MESSAGE", "")
	times := m.opts.Int("TIMES", 1)
	if times < 1 {
		times = 1
	}
	output := strings.Repeat(msg+"\n", times)
	fmt.Print(output)
	return modules.Outcome{
		Success: true,
		Summary: fmt.Sprintf("printed %d line(s)", times),
		Data:    map[string]any{"message": msg, "times": times},
	}, nil
}
