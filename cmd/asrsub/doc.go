// Command asrsub turns FunASR recognition results into subtitle files.
//
// It converts saved result JSON directly, sends audio to a FunASR HTTP
// service or runtime websocket server, and can watch a directory to do
// either for every new file. A running watcher is controlled with
// `asrsub ctl` and inspected with `asrsub status`.
package main
