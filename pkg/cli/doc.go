/*
Package cli provides command-line helpers for the mailrules command.

Output Formatting:

Results can be printed as text, JSON or CSV. CSV needs the result to
implement Tabular:

	format, err := cli.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, result); err != nil {
		return err
	}

Progress Reporting:

Batch evaluation reports per-outcome counts and throughput while workers run:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(len(messages))
	// each worker calls progress.Record(cli.OutcomeMatched) and so on
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
