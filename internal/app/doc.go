// Package app wires the editor together: keymap, registry, workspace,
// engine and the optional renderer emitter. It owns the key loop and the
// session state, decoupled from any specific entrypoint like a CLI.
package app
