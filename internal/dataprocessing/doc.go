// Package dataprocessing turns dropped cyclic-voltammetry exports into result rows.
//
// # Architecture
//
// The package has two parts:
//
// 1. Parser: ReadSampleCSV reads an instrument CSV (metadata preamble, then a
// two-column potential/current body) into a domain.SampleTable.
// 2. Processor: a per-directory state machine. The first file dropped into a
// directory without a reference becomes the reference curve; every later file
// is compared against it with the metric registry and appended to the results.
//
// # Usage
//
//	table, err := dataprocessing.ReadSampleCSV("FERRO_01.csv", dataprocessing.DefaultReaderOptions())
//	if err != nil {
//	    var pe *apierrors.ParseError
//	    errors.As(err, &pe) // file and 1-based line of the first bad line
//	}
//
//	p := dataprocessing.NewProcessor(dir, registry, store, workspace, opts, logger)
//	if err := p.Restore(ctx); err != nil {
//	    return err
//	}
//	outcomes, err := p.HandleBatch(ctx, paths)
//
// # States
//
//	NoReference --(file parsed)--> ReferenceSet --(file parsed)--> ReferenceSet (+1 row)
//
// Parse and metric failures leave the state and the outputs untouched and are
// reported as failed outcomes. Persistence failures are returned as errors.
package dataprocessing
