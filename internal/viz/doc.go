// Package viz draws contact simulations in the terminal.
//
// The package implements a live TUI using the Bubble Tea framework:
//
//   - [Model]: steps a world on every tick and shows solver statistics
//   - [Canvas]: Braille-based pixel canvas for high-fidelity rendering
//   - [DrawWorld]: side view of every shape with contact points marked
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	S     - Single step
//	R     - Rebuild the scene
//	V     - Swap between X and Y side views
//	[ ]   - Lower/raise the velocity iteration budget
//	?     - Show help overlay
package viz
