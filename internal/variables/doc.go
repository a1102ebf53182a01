// Package variables holds the variables exported by the bridge.
//
// The router writes values through kommander.VariableExporter; the API
// reads them back and listeners registered with OnChange are told about
// every value that actually changed.
package variables
