// Package ytdlp mediates access to the yt-dlp CLI used for every remote fetch.
//
// It builds command lines, decodes the single-document JSON metadata that
// yt-dlp prints, extracts listing entries with a JSONPath expression, and
// predicts output file names from yt-dlp naming templates so callers can
// check for an existing file before downloading.
//
// Commands run through the Executor interface so tests can substitute a stub
// instead of the real binary.
package ytdlp
