// Package watcher ingests profile files from the spool directory into the
// database.
//
// Traced commands (cmd/fsprof-cat, `fsprof record --spool`) drop one
// zstd-compressed profile per run into ~/.fsprof/spool, always through a
// temp file and a rename so a half-written profile is never visible under
// its final name. The Watcher picks new files up through fsnotify and a
// periodic sweep, and stores each as a session.
//
// Key features:
//   - fsnotify create/write notifications with a ticker sweep as backstop
//   - Idempotent ingest tracked in the ingested_files table
//   - Undecodable files are renamed to *.bad and never retried
//   - Daemon mode support with PID file management
//   - Graceful shutdown with SIGTERM/SIGINT handling
//
// Example usage:
//
//	st, err := store.New("~/.fsprof/fsprof.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	w, err := watcher.New(st, "~/.fsprof/spool", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := w.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
package watcher
