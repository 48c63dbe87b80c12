// Package viz renders fit reports in the terminal.
//
//   - [Report]: styled parameter table for a stored run
//   - [MSDChart]: observed MSD against the fitted model
//   - [Histogram]: posterior samples of one parameter
//   - [Progress]: Bubble Tea view of MCMC progress per condition
//
// Colours follow the current [Theme]; see [SetTheme].
package viz
