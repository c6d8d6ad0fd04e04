// Package output renders tally-cli results as a table, JSON or YAML.
//
// Values that implement Tabular choose their own columns; anything else
// falls back to indented JSON in table mode.
package output
