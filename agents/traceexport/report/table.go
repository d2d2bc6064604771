/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"chainguard.dev/catalyst/agents/traceexport"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

var tableHeaders = []string{"Span", "Type", "Status", "Duration", "Memory", "Network", "Error"}

// Table writes one markdown row per span of t, indented by depth.
func Table(w io.Writer, t *traceexport.Trace) error {
	if _, err := fmt.Fprintf(w, "## %s (%s)\n\n", t.TraceName, t.ID); err != nil {
		return err
	}

	table := newTable(tableHeaders, w)
	var appendErr error
	t.Walk(func(depth int, s *traceexport.Span) {
		toolType, memory, network := "", "", ""
		if c := s.Component; c != nil {
			toolType = c.Info.ToolType
			memory = strconv.FormatUint(c.Data.MemoryUsed, 10)
			network = strconv.Itoa(len(c.NetworkCalls))
		}
		row := []string{
			strings.Repeat("  ", depth) + s.Name,
			toolType,
			s.Status,
			duration(s),
			memory,
			network,
			errorMessage(s),
		}
		if err := table.Append(row); err != nil && appendErr == nil {
			appendErr = fmt.Errorf("adding row for %s: %w", s.Name, err)
		}
	})
	if appendErr != nil {
		return appendErr
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	_, err := fmt.Fprintf(w, "\n%d spans, %d errors\n", t.Metadata.TotalSpans, t.Metadata.Errors)
	return err
}

func newTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
