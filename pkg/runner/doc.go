/*
Package runner drives a Canopy page session from a stream of events.

It acts as the bridge between a mounted Session and a headless host. Each input
line is a JSON Event (trigger, viewport, locale, form or render); each output
line is a JSON Output carrying the action Report and the re-rendered Tree.
Input is sanitized before decoding: oversized lines are rejected and control
characters are stripped (see CANOPY_MAX_INPUT_SIZE).

# Usage

	session, _ := eng.MountPage(ctx, "home")
	r := runner.NewRunner(runner.WithInput(os.Stdin), runner.WithOutput(os.Stdout))
	if err := r.Run(ctx, session); err != nil {
		log.Fatal(err)
	}

Apply and TriggerAndRender expose the same event handling to other adapters,
such as the HTTP server.
*/
package runner
