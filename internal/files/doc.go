// Package files owns the working directory of an analysis session.
//
// A working directory is the folder of the dropped files. Every output the
// analyzer writes lives there too:
//
//	data.csv                  results table (UTF-8 with BOM)
//	data.xlsx                 spreadsheet mirror of data.csv
//	plot.png                  reference and test curves
//	.ferroci-reference.yaml   identity of the reference curve
//
// Manager answers the questions the processor asks about that folder (is it
// writable, which CSVs does it hold, which file is the reference) and
// WriteFileAtomic/WriteAtomicFunc give every output a temp-file-and-rename
// write so a crash never leaves a truncated file behind.
//
// Example usage:
//
//	dir, _ := files.ResolveWorkingDir(droppedPath)
//	m := files.NewManager(dir, files.DefaultLayout(), logger)
//	rec, err := m.LoadReference() // nil, nil when no reference was set
package files
