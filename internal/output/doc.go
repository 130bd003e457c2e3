// Package output formats analysis results for display, machine consumption,
// or posting as a merge-request comment.
//
// Four formats are supported:
//   - text: human-readable terminal output (default)
//   - json: the analysis result as JSON
//   - markdown: the merge-request review report (see [RenderReport])
//   - sarif: SARIF v2.1.0 for upload to code-scanning tools
//
// Use [GetWriter] to obtain a [Writer] for a given format string, then call
// [Writer.Write] with an [io.Writer] and a [*Report]. Snippets are passed
// through the redact package before they are rendered.
package output
