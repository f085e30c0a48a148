package main

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

func renderSteps(w io.Writer, steps []stripStep) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"index", "marker", "pattern", "removed"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	for _, s := range steps {
		table.Append([]string{
			strconv.Itoa(s.Index),
			s.Marker,
			s.Pattern,
			strconv.Itoa(s.Removed),
		})
	}

	table.Render()
}

func writeReport(w io.Writer, rep report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}
