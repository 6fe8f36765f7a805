package route

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Describe writes a human-readable listing of the table to w.
func (t *Table) Describe(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMETHODS\tPATH\tSERVICE\tTARGET\tTIMEOUT")
	for _, r := range t.Routes {
		target := r.Target
		if r.UpstreamMethod != "" {
			target = r.UpstreamMethod + " " + target
		}
		timeout := "default"
		if r.Timeout > 0 {
			timeout = r.Timeout.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name,
			strings.Join(r.Methods, ","),
			r.Path,
			r.Service,
			target,
			timeout,
		)
	}
	return tw.Flush()
}
