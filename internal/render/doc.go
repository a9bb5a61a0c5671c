// Package render turns stored conversations into Markdown or HTML documents.
package render
