package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/sergeknystautas/landed/internal/api/contracts"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(format string) bool {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return true
	}
	return false
}

// renderInclusion writes a single-branch inclusion response in format.
func renderInclusion(w io.Writer, format string, resp contracts.InclusionResponse, style *termStyle) error {
	switch format {
	case formatJSON:
		return writeJSON(w, resp)
	case formatYAML:
		return writeYAML(w, resp)
	}

	fmt.Fprintf(w, "%s %s in %s", style.Bold("Branch"), style.Cyan(resp.Branch), resp.Project)
	if resp.EvidenceTerm != "" {
		fmt.Fprintf(w, " %s", style.Dim("(evidence term "+resp.EvidenceTerm+")"))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	return writeResultTable(w, resp.Results, style, "  ")
}

// renderMultiCompare writes a multi-term compare response in format.
func renderMultiCompare(w io.Writer, format string, resp contracts.MultiCompareResponse, style *termStyle) error {
	switch format {
	case formatJSON:
		return writeJSON(w, resp)
	case formatYAML:
		return writeYAML(w, resp)
	}

	for _, report := range resp.Reports {
		fmt.Fprintf(w, "%s %s %s\n", style.Bold(report.Project), style.Dim("term"), style.Cyan(report.Term))
		if report.Error != "" {
			fmt.Fprintf(w, "  %s\n\n", style.Red("error: "+report.Error))
			continue
		}
		if len(report.Branches) == 0 {
			fmt.Fprintf(w, "  %s\n\n", style.Dim("no matching branches"))
			continue
		}
		for _, b := range report.Branches {
			fmt.Fprintf(w, "  %s\n", b.Branch)
			if err := writeResultTable(w, b.Results, style, "    "); err != nil {
				return err
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeResultTable(w io.Writer, results []contracts.InclusionResult, style *termStyle, indent string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range results {
		mark := style.Green("✓")
		if !r.Included {
			mark = style.Red("✗")
		}
		fmt.Fprintf(tw, "%s%s %s\t%s\t%s\t%s\n", indent, mark, r.Target, r.Via, r.Confidence, resultDetail(r))
	}
	return tw.Flush()
}

// resultDetail is the free-form last column of a result row.
func resultDetail(r contracts.InclusionResult) string {
	switch {
	case r.Diagnostic != "":
		return "failed: " + r.Diagnostic
	case r.Included && r.Via == contracts.ViaSearch:
		return fmt.Sprintf("%d commit(s) mention %q", r.EvidenceCount, r.EvidenceTerm)
	case r.Included:
		return ""
	}

	detail := fmt.Sprintf("missing %d commit(s)", r.MissingCount)
	if len(r.MissingSample) > 0 {
		var ids []string
		for _, c := range r.MissingSample {
			ids = append(ids, c.ShortID)
		}
		detail += ": " + strings.Join(ids, " ")
	}
	return detail
}

// summarizeResult is a one-line, uncoloured form used for progress output.
func summarizeResult(r contracts.InclusionResult) string {
	state := "included"
	if !r.Included {
		state = "not included"
	}
	line := fmt.Sprintf("%s: %s via %s", r.Target, state, r.Via)
	if d := resultDetail(r); d != "" {
		line += " (" + d + ")"
	}
	return line
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML emits v with its JSON field names and field order. The JSON is
// parsed as a YAML node tree and restyled to block form.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
