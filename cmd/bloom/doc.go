// Command bloom runs the gesture garden and inspects what it has saved.
//
// `bloom run` opens the window (or runs headless with --headless), attaches
// the camera and serves the HTTP API. The snapshots, captions and config
// subcommands read the local database and configuration without starting
// the garden.
package main
