// Package plot draws cyclic-voltammetry curves with go-chart.
//
// The reference curve is magenta and three pixels wide; test curves use a
// rotating palette at reduced opacity. The same chart is served to the
// browser as SVG and saved next to the results as plot.png.
package plot
