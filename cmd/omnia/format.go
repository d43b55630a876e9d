package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"omnia/internal/app"
	"omnia/internal/catalog"
	"omnia/internal/config"
)

const timeLayout = "2006-01-02 15:04:05"

func printEntries(w io.Writer, entries []config.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%v\n", e.Key, e.Value)
	}
	tw.Flush()
}

func printHistory(w io.Writer, ops []*catalog.Operation) {
	for _, op := range ops {
		duration := ""
		if op.FinishedAt != nil {
			duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
		}
		line := fmt.Sprintf("%s  %-14s  %s  %-8s  %s",
			op.StartedAt.Local().Format(timeLayout),
			op.Command,
			shortID(op.ID()),
			op.Status,
			duration,
		)
		if op.Parameters != "" {
			line += "  " + op.Parameters
		}
		if op.Message != "" {
			line += "  (" + op.Message + ")"
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printInfo(w io.Writer, info app.Info) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Version:\t%s\n", info.Version)
	fmt.Fprintf(tw, "Host ID:\t%s\n", info.HostID)
	fmt.Fprintf(tw, "Store:\t%s\n", info.Store)
	fmt.Fprintf(tw, "Base Dir:\t%s\n", info.BaseDir)
	if info.LogFile != "" {
		fmt.Fprintf(tw, "Log File:\t%s\n", info.LogFile)
	}
	fmt.Fprintf(tw, "Vault:\t%s\n", info.Vault)
	fmt.Fprintf(tw, "Encryption:\t%s\n", info.Encryption)
	if info.Recipient != "" {
		fmt.Fprintf(tw, "Recipient:\t%s\n", info.Recipient)
	}
	fmt.Fprintf(tw, "Kinds:\t%s\n", strings.Join(info.Kinds, ", "))
	tw.Flush()
}

// printRegisterResults prints failures always, every file when all is set,
// and a per-outcome summary.
func printRegisterResults(w io.Writer, results []catalog.RegisterResult, all bool) {
	for _, r := range results {
		switch {
		case r.Outcome == catalog.OutcomeFailed:
			fmt.Fprintf(w, "%-11s %s: %v\n", r.Outcome, r.Path, r.Err)
		case all:
			fmt.Fprintf(w, "%-11s %s\n", r.Outcome, r.Path)
		}
	}

	counts := catalog.Summarize(results)
	var parts []string
	for _, o := range []catalog.Outcome{
		catalog.OutcomeInserted, catalog.OutcomeLinked, catalog.OutcomeOverwritten,
		catalog.OutcomeSkipped, catalog.OutcomeFailed,
	} {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, o))
		}
	}
	if len(parts) == 0 {
		fmt.Fprintln(w, "Nothing to register.")
		return
	}
	fmt.Fprintf(w, "Registered %d file(s): %s\n", len(results), strings.Join(parts, ", "))
}

func printCollections(w io.Writer, list []app.CollectionSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFILES\tTAGS\tDESCRIPTION")
	for _, s := range list {
		c := s.Collection
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.Name(), s.Files, strings.Join(c.Tags, ","), c.Description)
	}
	tw.Flush()
}

func printCollectionDetail(w io.Writer, c *catalog.Collection, files []*catalog.FileObject, long bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", c.Name())
	fmt.Fprintf(tw, "Key:\t%s\n", c.UniqueKey())
	if c.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", c.Description)
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(tw, "Tags:\t%s\n", strings.Join(c.Tags, ", "))
	}
	if c.Provider != nil {
		fmt.Fprintf(tw, "Provider:\t%s %s\n", c.Provider.Name, c.Provider.URL)
	}
	if !c.Notes.IsNull() {
		notes, _ := json.Marshal(c.Notes)
		fmt.Fprintf(tw, "Notes:\t%s\n", notes)
	}
	fmt.Fprintf(tw, "Created:\t%s\n", c.CreatedAt().Local().Format(timeLayout))
	if m := c.ModifiedAt(); m != nil {
		fmt.Fprintf(tw, "Modified:\t%s\n", m.Local().Format(timeLayout))
	}
	fmt.Fprintf(tw, "Files:\t%d\n", len(files))
	tw.Flush()

	if long {
		for _, f := range files {
			fmt.Fprintf(w, "  %s\n", f.Path())
		}
	}
}

func printFileDetails(w io.Writer, details []catalog.FileDetail) {
	for i, d := range details {
		if i > 0 {
			fmt.Fprintln(w)
		}
		f := d.File
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Path:\t%s\n", f.Path())
		fmt.Fprintf(tw, "Key:\t%s\n", f.UniqueKey())
		fmt.Fprintf(tw, "Host:\t%s\n", f.Host)
		if f.Checksum != nil {
			fmt.Fprintf(tw, "Checksum:\t%s\n", *f.Checksum)
		}
		if f.Size != nil {
			fmt.Fprintf(tw, "Size:\t%d\n", *f.Size)
		}
		if f.MimeType != nil {
			fmt.Fprintf(tw, "MIME type:\t%s\n", *f.MimeType)
		}

		names := make([]string, 0, len(d.Collections)+len(d.Missing))
		for _, c := range d.Collections {
			names = append(names, c.Name())
		}
		for _, pk := range d.Missing {
			names = append(names, "<missing:"+pk+">")
		}
		fmt.Fprintf(tw, "Collections:\t%s\n", strings.Join(names, ", "))
		fmt.Fprintf(tw, "Registered:\t%s\n", f.CreatedAt().Local().Format(timeLayout))
		tw.Flush()
	}
}

// printDocuments writes documents as indented JSON, one array.
func printDocuments(w io.Writer, docs []catalog.Document) error {
	if docs == nil {
		docs = []catalog.Document{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}
