// Package main prints the medicine catalogue the portal would show, for
// operators checking a backend from a terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/medihope/portal/internal/backend"
	"github.com/medihope/portal/internal/config"
	"github.com/medihope/portal/internal/domain/medicine"
	"github.com/medihope/portal/internal/views"
	"github.com/medihope/portal/pkg/workerpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var (
		apiURL  = flag.String("api", cfg.BackendURL, "backend base URL")
		email   = flag.String("email", "", "only medicines from donors whose email contains this")
		query   = flag.String("q", "", "medicine or company name contains this")
		status  = flag.String("status", "all", "all, valid, expiring or expired")
		timeout = flag.Duration("timeout", 30*time.Second, "overall request timeout")
		verbose = flag.Bool("v", false, "log backend diagnostics")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	client, err := backend.New(backend.Config{BaseURL: *apiURL}, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	pool := workerpool.New(workerpool.Config{Workers: 2, QueueSize: 2}, logger)
	pool.Start()
	defer pool.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	page := views.NewListedMed(&views.AppContext{Backend: client, Pool: pool, Logger: logger})
	page.Load(ctx)

	report(os.Stdout, page.Page(medicine.Criteria{
		Email:  *email,
		Text:   *query,
		Bucket: medicine.ParseBucket(*status),
	}))
}

func report(out io.Writer, p views.Page) {
	fmt.Fprintln(out, p.Heading)
	fmt.Fprintf(out, "total %d, expiring soon %d, expired %d\n\n",
		p.Stats.Total, p.Stats.ExpiringSoon, p.Stats.Expired)

	if len(p.Cards) == 0 {
		fmt.Fprintln(out, p.EmptyTitle)
		fmt.Fprintln(out, p.EmptyHint)
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tMEDICINE\tCOMPANY\tQTY\tEXPIRES\tSTATUS")
	for _, c := range p.Cards {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", c.Key, c.Name, c.Company, c.Qty, c.ExpDate, c.Status)
	}
	tw.Flush()
	fmt.Fprintln(out)
	fmt.Fprintln(out, p.Summary)
}
