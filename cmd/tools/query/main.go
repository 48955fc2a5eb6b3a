// Command query evaluates a filter address against a dataset and prints the
// matching opportunities as a table.
//
//	query --naics 541512 --period 90d --sort fitScore --dir desc
//	query --address 'agency=VA%2CDHS&keywords=cloud'
package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/david/bid-filter/internal/dataset"
	"github.com/david/bid-filter/internal/filter"
	"github.com/david/bid-filter/internal/query"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	datasetPath string
	address     string
	values      url.Values
	sortKey     string
	dir         string
	now         time.Time
	validate    bool
}

func parseFlags(errOut io.Writer, args []string) (options, error) {
	flagSet := flag.NewFlagSet("query", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	var opts options
	flagSet.StringVar(&opts.datasetPath, "dataset", "", "Dataset file (.json, .yaml); defaults to the bundled sample")
	flagSet.StringVar(&opts.address, "address", "", "Shareable filter address (query string)")
	flagSet.StringVar(&opts.sortKey, "sort", string(query.SortDueDate), "Sort key: dueDate, percentComplete, fitScore or none")
	flagSet.StringVar(&opts.dir, "dir", string(query.Asc), "Sort direction: asc or desc")
	flagSet.BoolVar(&opts.validate, "validate", false, "Report draft issues and exit non-zero when the filters would not apply")
	nowStr := flagSet.String("now", "", "Evaluation date (YYYY-MM-DD); defaults to today")

	fields := make(map[string]*string, len(filter.Fields))
	for _, field := range filter.Fields {
		fields[field.Key()] = flagSet.String(flagName(field.Key()), "", "Filter on "+field.Key())
	}

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}

	opts.values = url.Values{}
	if opts.address != "" {
		parsed, err := url.ParseQuery(strings.TrimPrefix(opts.address, "?"))
		if err != nil {
			return opts, fmt.Errorf("invalid --address: %w", err)
		}
		opts.values = parsed
	}
	for key, v := range fields {
		if *v != "" {
			opts.values.Set(key, *v)
		}
	}

	opts.now = time.Now()
	if *nowStr != "" {
		t, err := dataset.ParseDueDate(*nowStr)
		if err != nil {
			return opts, fmt.Errorf("invalid --now: %w", err)
		}
		opts.now = t
	}
	return opts, nil
}

// flagName turns setAside into set-aside.
func flagName(key string) string {
	var b strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func run(args []string, out, errOut io.Writer) int {
	opts, err := parseFlags(errOut, args)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}

	source, path := "embedded", ""
	if opts.datasetPath != "" {
		source, path = "file", opts.datasetPath
	}
	records, err := dataset.Load(context.Background(), source, path, nil)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	f := filter.Default()
	for key := range opts.values {
		u, err := filter.ParseUpdate(key, opts.values.Get(key))
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 2
		}
		f = u.Apply(f)
	}
	f.Keywords = filter.NormalizeKeywords(f.Keywords, filter.DefaultMaxKeywords)

	if issues := filter.Validate(f); !issues.OK() {
		for _, issue := range issues {
			fmt.Fprintf(errOut, "%s: %s\n", issue.Key, issue.Message)
		}
		if opts.validate {
			return 3
		}
	}

	res := query.Evaluate(records, f, opts.now)
	rows := query.Sort(res.Matches, query.ParseOrder(opts.sortKey, opts.dir))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Title", "NAICS", "Agency", "Vehicle", "Status", "Due", "Ceiling", "% Done", "Fit"})
	for _, o := range rows {
		t.AppendRow(table.Row{
			o.Title,
			o.NAICS,
			o.Agency,
			o.Vehicle,
			o.Status,
			fmt.Sprintf("%s (%s)", o.DueDate.Format("2006-01-02"), humanize.RelTime(o.DueDate, opts.now, "ago", "from now")),
			"$" + humanize.Comma(int64(o.Ceiling)),
			fmt.Sprintf("%.0f%%", o.PercentComplete),
			fmt.Sprintf("%.0f", o.FitScore),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%s of %s", humanize.Comma(int64(len(rows))), humanize.Comma(int64(len(records)))),
		"", "", "", "", "", "", fmt.Sprintf("%d%%", res.Progress), "",
	})
	t.Render()

	if share := filter.Encode(f).Encode(); share != "" {
		fmt.Fprintf(out, "address: ?%s\n", share)
	}
	return 0
}
