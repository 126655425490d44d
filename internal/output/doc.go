// Package output renders end-of-run summaries and live progress.
//
// Render turns a Summary into a text report and a Document. Sinks receive
// both forms: WriterSink prints the text, FileSink persists the document as
// JSON or YAML. Emit fans a summary out to several sinks and reports every
// failure.
package output
