/*
Package runner implements the console chat simulator.

It drives a ports.Runtime the way WhatsApp would: messages the flow sends are
printed, each line the user types answers the pending question, and wait steps
are either skipped or slept through. The session lives in whatever store the
runtime uses, so a conversation can be paused (EOF) and resumed later.

# Key Components

  - Runner: the conversation loop.
  - IOHandler: decouples how messages are shown and answers read.
  - TextHandler: chat-like transcript for interactive use.
  - JSONHandler: JSON-Lines for scripted use.
  - SanitizeInput: the input policy shared with the HTTP adapter.

# Usage

	r := runner.NewRunner(
		runner.WithSessionID("+34600111222"),
		runner.WithBindings(map[string]any{"phone": "+34600111222"}),
		runner.WithRenderer(tui.NewRenderer()),
	)

	if _, err := r.Run(ctx, engine, "welcome"); err != nil {
		log.Fatal(err)
	}
*/
package runner
