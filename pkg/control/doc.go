// Package control is the session control plane for adversarial
// multi-agent simulations: lifecycle state machine, cooperative
// pause/resume, out-of-band command queue, and sabotage event log.
//
// Invariants:
// - Status transitions follow a fixed graph; anything else returns ErrInvalidTransition.
// - The pause flag is true exactly when the status is paused.
// - Commands are append-only and totally ordered by enqueue time; delivery flips once.
// - At most one adversary assignment exists per session, created at Start.
// - All mutation happens under a single registry lock; readers never see partial state.
//
// Usage:
//
//	reg := control.New(control.Config{Catalog: sabotage.DefaultCatalog()})
//	res, _ := reg.Start(ctx, "heist-001", []string{"planner", "hacker"}, nil)
//	_ = reg.SendCommand(ctx, "heist-001", "hacker", "abort the vault approach")
//	_, _ = reg.Pause(ctx, "heist-001")
//	_ = res
package control
