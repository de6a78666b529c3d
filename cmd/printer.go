package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Quidge/diffharness/internal/execution"
	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/reflection"
	"github.com/Quidge/diffharness/internal/target"
)

// printer renders execution progress for humans.
type printer struct {
	w     io.Writer
	quiet bool
}

func joinConfigs(configs []harness.ConfigID) string {
	ids := make([]string, len(configs))
	for i, c := range configs {
		ids[i] = c.String()
	}
	return strings.Join(ids, ", ")
}

func (p *printer) printConfigs(configs []harness.Config) {
	w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tADAPTER")
	for _, c := range configs {
		fmt.Fprintf(w, "%s\t%s\n", c.ID, c.AdapterName)
	}
	w.Flush()
}

func (p *printer) printEvent(e execution.Event, pipeline reflection.PipelineDescription) {
	if p.quiet {
		return
	}

	switch e := e.(type) {
	case execution.UsingDefaults:
		fmt.Fprintf(p.w, "no configurations specified, using defaults: %s\n\n", joinConfigs(e.Configs))

	case execution.Start:
		fmt.Fprintf(p.w, "[%s] executing %s\n", time.Now().Format("15:04:05"), e.Config)
		fmt.Fprintln(p.w, "inputs:")
		none := true
		for _, r := range pipeline.Resources {
			if r.Init != nil {
				fmt.Fprintf(p.w, "  %d:%d : %s\n", r.Group, r.Binding, target.FormatBytes(r.Init))
				none = false
			}
		}
		if none {
			fmt.Fprintln(p.w, "  none")
		}

	case execution.Success:
		fmt.Fprintf(p.w, "outputs (%s):\n", e.Config)
		storage := pipeline.StorageBuffers()
		for i, j := range storage {
			r := pipeline.Resources[j]
			var buf []byte
			if i < len(e.Buffers) {
				buf = e.Buffers[i]
			}
			fmt.Fprintf(p.w, "  %d:%d : %s\n", r.Group, r.Binding, target.FormatBytes(buf))
		}
		if len(storage) == 0 {
			fmt.Fprintln(p.w, "  none")
		}
		fmt.Fprintln(p.w)

	case execution.Failure:
		fmt.Fprintf(p.w, "%s failed:\n%s\n", e.Config, strings.TrimRight(string(e.Stderr), "\n"))

	case execution.Timeout:
		fmt.Fprintf(p.w, "%s: timeout\n\n", e.Config)
	}
}
