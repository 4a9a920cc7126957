// Command speakerdash is a terminal dashboard and scripting CLI for a
// speaker-identification backend. Run without arguments it starts the
// dashboard; the subcommands cover the same edits for scripts.
package main
