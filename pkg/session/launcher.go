package session

import "context"

// Launcher starts the process described by an entry's exec string. Its
// failure reasons are surfaced to the caller without interpretation.
type Launcher interface {
	Launch(ctx context.Context, exec string) error
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, exec string) error

func (f LauncherFunc) Launch(ctx context.Context, exec string) error {
	return f(ctx, exec)
}

type noLauncher struct{}

func (noLauncher) Launch(context.Context, string) error { return ErrNoLauncher }
