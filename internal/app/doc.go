// Package app runs one reformatting pass: it opens the input and output
// files, streams every record from a csvita.Reader into a csvita.Writer, and
// maps failures onto the tool's error taxonomy.
package app
