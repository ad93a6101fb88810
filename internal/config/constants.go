package config

// Output and input file conventions
const (
	DataOutputFilename       = "data.csv"
	ExcelOutputFilename      = "data.xlsx"
	PlotOutputFilename       = "plot.png"
	ReferenceSidecarFilename = ".ferroci-reference.yaml"
	DefaultColumnMarker      = "Potential/V"
	SupportedExtension       = ".csv"
	LogFileName              = "ferroci.log"
)

// Alignment policies for comparing a sample against the reference
const (
	AlignmentStrict      = "strict"
	AlignmentTruncate    = "truncate"
	AlignmentInterpolate = "interpolate"
)

// Built-in metric names, also the result column headers
const (
	MetricSumAbsDifference = "Sum_Abs_Difference"
	MetricMinMaxRange      = "Min_Max_Range"
	MetricPeakCurrent      = "Peak_Current"
)

// Server defaults
const (
	DefaultPort = 8080
)

// Plot styling
const (
	ReferenceLineColor = "#ff00ff"
	ReferenceLineWidth = 3.0
	TestLineAlpha      = 0.6
	PlotWidth          = 800
	PlotHeight         = 600
)
