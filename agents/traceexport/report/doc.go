/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package report renders finalized traces for humans.

# Generators

All tree generators implement the Generator function type:

	type Generator func(t *traceexport.Trace) (string, bool)

  - Tree: the span hierarchy with status, duration and error messages
  - Table writes one markdown row per span to an io.Writer

# Usage

	doc, err := report.Load("/tmp/3f2a.json")
	if err != nil {
		return err
	}
	out, failed := report.Tree(doc)
	if failed {
		fmt.Printf("Trace has errors:\n%s", out)
	}

Generators do not modify the trace and are safe for concurrent use.
*/
package report
