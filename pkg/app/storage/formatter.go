package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/deploymenttheory/go-its/internal/flashfs"
	"github.com/deploymenttheory/go-its/internal/metrics"
	"gopkg.in/yaml.v3"
)

// FormatOutput writes a handler response in the requested format
func FormatOutput(w io.Writer, response any, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable writes a human readable rendering. Get responses are written
// as raw asset bytes so they can be piped.
func formatTable(out io.Writer, response any) error {
	if r, ok := response.(*GetResponse); ok {
		_, err := out.Write(r.Data)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := response.(type) {
	case *SetResponse:
		fmt.Fprintf(w, "STORE\tOWNER\tUID\tLENGTH\tFLAGS\n")
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", r.Store, r.Target.Owner, r.Target.UID, r.Length, joinFlags(r.Flags))
	case *InfoResponse:
		fmt.Fprintf(w, "STORE\tOWNER\tUID\tSIZE\tCAPACITY\tFLAGS\n")
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n", r.Store, r.Target.Owner, r.Target.UID, r.Size, r.Capacity, joinFlags(r.Flags))
	case *RemoveResponse:
		fmt.Fprintf(w, "Removed %s from %s\n", r.Target.String(), r.Store)
	case *FormatResponse:
		writeStats(w, r.Stores)
	case *InspectResponse:
		for i, report := range r.Reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeReport(w, report)
		}
	case *StatsResponse:
		writeStats(w, r.Stores)
		if len(r.Metrics) > 0 {
			fmt.Fprintln(w)
			writeMetrics(w, r.Metrics)
		}
	default:
		return fmt.Errorf("no table format for %T", response)
	}
	return nil
}

func writeStats(w io.Writer, stats []flashfs.Stats) {
	fmt.Fprintf(w, "STORE\tSTATE\tGENERATION\tACTIVE\tFILES\tSTALE\tCORRUPT\tFREE\n")
	fmt.Fprintf(w, "-----\t-----\t----------\t------\t-----\t-----\t-------\t----\n")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Name, s.State, s.Generation, s.ActiveBlock, s.LiveFiles, s.StaleEntries, s.CorruptEntries, formatBytes(int64(s.FreeBytes)))
	}
}

func writeReport(w io.Writer, r flashfs.Report) {
	fmt.Fprintf(w, "Store: %s (ID: %s)\n", r.Stats.Name, r.Stats.StoreID)
	fmt.Fprintf(w, "BLOCK\tCLASS\tGENERATION\tACTIVE\n")
	for _, b := range r.Blocks {
		fmt.Fprintf(w, "%d\t%s\t%d\t%t\n", b.Block, b.Class, b.Generation, b.Active)
	}

	if len(r.Files) == 0 {
		fmt.Fprintf(w, "\nNo files stored.\n")
		return
	}
	fmt.Fprintf(w, "\nOWNER\tUID\tSIZE\tCAPACITY\tOFFSET\tFLAGS\n")
	for _, f := range r.Files {
		dirty := ""
		if f.TailDirty {
			dirty = " (dirty tail)"
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%#x\t%#x%s\n", f.Owner, f.UID, f.SizeCurrent, f.SizeMax, f.DataOffset, uint32(f.Flags), dirty)
	}
}

func writeMetrics(w io.Writer, samples []metrics.Sample) {
	fmt.Fprintf(w, "METRIC\tLABELS\tVALUE\n")
	for _, s := range samples {
		fmt.Fprintf(w, "%s\t%s\t%g\n", s.Name, formatLabels(s.Labels), s.Value)
	}
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

func joinFlags(flags []string) string {
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

// formatJSON formats results as JSON
func formatJSON(w io.Writer, response any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats results as YAML
func formatYAML(w io.Writer, response any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

// formatBytes formats byte count as human readable
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
